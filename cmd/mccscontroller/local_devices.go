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

package main

import (
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/health"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/station"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/subarray"
)

// sinkRef breaks the construction cycle between a component manager and the
// devices that report into it: devices are created first, the sink is bound
// once the parent exists. Nil sinks drop events.
type sinkRef struct {
	sink proxy.EventSink
	locking.RWMutex
}

func (s *sinkRef) bind(sink proxy.EventSink) {
	s.Lock()
	defer s.Unlock()
	s.sink = sink
}

func (s *sinkRef) get() proxy.EventSink {
	s.RLock()
	defer s.RUnlock()
	return s.sink
}

// localDevice is an in-process device endpoint: it keeps a power state and
// reports changes to its parent's event sink the way a transport-backed
// proxy would, one goroutine per notification.
type localDevice struct {
	fqdn   common.FQDN
	parent *sinkRef

	power         common.PowerState
	communicating bool
	// healthFn overrides the OK health reported on connect, set by device
	// variants that derive their own health
	healthFn func() common.HealthState
	locking.Mutex
}

func newLocalDevice(fqdn common.FQDN, parent *sinkRef) *localDevice {
	return &localDevice{
		fqdn:   fqdn,
		parent: parent,
		power:  common.PowerOff,
	}
}

func (d *localDevice) FQDN() common.FQDN {
	return d.fqdn
}

func (d *localDevice) StartCommunicating() common.CommandResult {
	d.Lock()
	d.communicating = true
	power := d.power
	d.Unlock()
	if sink := d.parent.get(); sink != nil {
		go func() {
			sink.CommunicationStateChanged(d.fqdn, common.CommunicationEstablished)
			sink.PowerStateChanged(d.fqdn, power)
			healthy := common.HealthOK
			if d.healthFn != nil {
				healthy = d.healthFn()
			}
			sink.HealthStateChanged(d.fqdn, &healthy)
		}()
	}
	return common.OKResult()
}

func (d *localDevice) StopCommunicating() common.CommandResult {
	d.Lock()
	d.communicating = false
	d.Unlock()
	if sink := d.parent.get(); sink != nil {
		go sink.CommunicationStateChanged(d.fqdn, common.CommunicationDisabled)
	}
	return common.OKResult()
}

func (d *localDevice) setPower(state common.PowerState) common.CommandResult {
	d.Lock()
	if !d.communicating {
		d.Unlock()
		return common.RejectedResult(common.ErrNotCommunicating.Error())
	}
	d.power = state
	d.Unlock()
	if sink := d.parent.get(); sink != nil {
		go sink.PowerStateChanged(d.fqdn, state)
	}
	return common.OKResult()
}

func (d *localDevice) On() common.CommandResult {
	return d.setPower(common.PowerOn)
}

func (d *localDevice) Off() common.CommandResult {
	return d.setPower(common.PowerOff)
}

func (d *localDevice) Standby() common.CommandResult {
	return d.setPower(common.PowerStandby)
}

// localBeam adds the identity attributes of a beam device plus a beam health
// model: a beam without phase lock reports DEGRADED, and a local beam locks
// its phase as soon as it is assigned to a subarray.
type localBeam struct {
	*localDevice

	health *health.StationBeamModel

	subarrayID  int
	stationID   int
	stationFQDN common.FQDN
	idLock      locking.Mutex
}

func newLocalBeam(fqdn common.FQDN, parent *sinkRef) *localBeam {
	b := &localBeam{localDevice: newLocalDevice(fqdn, parent)}
	b.health = health.NewStationBeamModel(fqdn, func(state common.HealthState) {
		if sink := parent.get(); sink != nil {
			reported := state
			go sink.HealthStateChanged(fqdn, &reported)
		}
	})
	b.healthFn = b.health.Health
	return b
}

func (b *localBeam) StartCommunicating() common.CommandResult {
	b.health.SetCommunicating(true)
	return b.localDevice.StartCommunicating()
}

func (b *localBeam) StopCommunicating() common.CommandResult {
	b.health.SetCommunicating(false)
	return b.localDevice.StopCommunicating()
}

func (b *localBeam) SetBeamIdentity(subarrayID int, stationID int, stationFQDN common.FQDN) common.CommandResult {
	b.idLock.Lock()
	b.subarrayID = subarrayID
	b.stationID = stationID
	b.stationFQDN = stationFQDN
	b.idLock.Unlock()
	b.health.SetBeamLocked(subarrayID != 0)
	return common.OKResult()
}

func (b *localBeam) ClearBeamIdentity() common.CommandResult {
	return b.SetBeamIdentity(0, 0, "")
}

// localStation exposes a station component manager as the device the
// controller talks to.
type localStation struct {
	cm *station.ComponentManager
}

func (s *localStation) FQDN() common.FQDN {
	return s.cm.FQDN()
}

func (s *localStation) StartCommunicating() common.CommandResult {
	return s.cm.StartCommunicating()
}

func (s *localStation) StopCommunicating() common.CommandResult {
	return s.cm.StopCommunicating()
}

func (s *localStation) On() common.CommandResult {
	return s.cm.On()
}

func (s *localStation) Off() common.CommandResult {
	return s.cm.Off()
}

func (s *localStation) Standby() common.CommandResult {
	return s.cm.Standby()
}

func (s *localStation) AssignChannelBlocks(subarrayID int, blocks []int) common.CommandResult {
	return s.cm.AssignChannelBlocks(subarrayID, blocks)
}

func (s *localStation) ReleaseChannelBlocks(subarrayID int) common.CommandResult {
	return s.cm.ReleaseChannelBlocks(subarrayID)
}

// localSubarray exposes a subarray component manager as the device the
// controller talks to. Power state of a logical subarray follows commands
// directly.
type localSubarray struct {
	*localDevice
	cm *subarray.ComponentManager
}

func (s *localSubarray) AssignResources(resources proxy.ResourceSet) common.CommandResult {
	return s.cm.AssignResources(resources)
}

func (s *localSubarray) ReleaseAllResources() common.CommandResult {
	return s.cm.ReleaseAllResources()
}
