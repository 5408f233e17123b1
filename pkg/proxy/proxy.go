/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package proxy declares the capability surfaces of remote devices. The
// wire-level transport behind these interfaces is an external collaborator:
// implementations deliver state change notifications on their own threads,
// in real time order per device, in no particular order across devices.
package proxy

import (
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
)

// Startable is the communication lifecycle every device proxy supports.
type Startable interface {
	FQDN() common.FQDN
	StartCommunicating() common.CommandResult
	StopCommunicating() common.CommandResult
}

// Powerable is a device that can be switched between power states.
type Powerable interface {
	On() common.CommandResult
	Off() common.CommandResult
	Standby() common.CommandResult
}

// Device is the minimal proxy: communication plus power.
type Device interface {
	Startable
	Powerable
}

// ResourceSet is the configuration pushed to a subarray once an allocation
// has been committed: the beams it owns plus the channel blocks leased to it
// per station.
type ResourceSet struct {
	SubarrayBeamIDs []int
	StationBeamIDs  []int
	// station fqdn -> leased channel block numbers
	ChannelBlocks map[common.FQDN][]int
}

// Resourceable is a subarray device: resources can be assigned to it and
// dropped from it.
type Resourceable interface {
	Device
	AssignResources(resources ResourceSet) common.CommandResult
	ReleaseAllResources() common.CommandResult
}

// StationDevice is a station seen from the controller: power plus the
// channel block bookkeeping a subarray leases from it.
type StationDevice interface {
	Device
	AssignChannelBlocks(subarrayID int, blocks []int) common.CommandResult
	ReleaseChannelBlocks(subarrayID int) common.CommandResult
}

// BeamDevice is a station or subarray beam: after allocation the derived
// identifiers are written back to it, and cleared again on release.
type BeamDevice interface {
	Device
	SetBeamIdentity(subarrayID int, stationID int, stationFQDN common.FQDN) common.CommandResult
	ClearBeamIdentity() common.CommandResult
}

// EventSink receives the asynchronous notifications a device proxy delivers.
// Implementations must tolerate calls from many threads concurrently.
type EventSink interface {
	CommunicationStateChanged(fqdn common.FQDN, state common.CommunicationState)
	PowerStateChanged(fqdn common.FQDN, state common.PowerState)
	HealthStateChanged(fqdn common.FQDN, state *common.HealthState)
}
