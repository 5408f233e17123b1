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

package controller

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common/configs"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
)

// mockDevice is the shared base of every mock proxy.
type mockDevice struct {
	sync.Mutex
	fqdn    common.FQDN
	onCalls int
}

func (d *mockDevice) FQDN() common.FQDN                        { return d.fqdn }
func (d *mockDevice) StartCommunicating() common.CommandResult { return common.OKResult() }
func (d *mockDevice) StopCommunicating() common.CommandResult  { return common.OKResult() }
func (d *mockDevice) Off() common.CommandResult                { return common.OKResult() }
func (d *mockDevice) Standby() common.CommandResult            { return common.OKResult() }

func (d *mockDevice) On() common.CommandResult {
	d.Lock()
	defer d.Unlock()
	d.onCalls++
	return common.OKResult()
}

type mockSubarray struct {
	mockDevice
	assigned     *proxy.ResourceSet
	releases     int
	rejectAssign bool
}

func (s *mockSubarray) AssignResources(resources proxy.ResourceSet) common.CommandResult {
	s.Lock()
	defer s.Unlock()
	if s.rejectAssign {
		return common.FailedResult("subarray refused resources")
	}
	s.assigned = &resources
	return common.OKResult()
}

func (s *mockSubarray) ReleaseAllResources() common.CommandResult {
	s.Lock()
	defer s.Unlock()
	s.assigned = nil
	s.releases++
	return common.OKResult()
}

func (s *mockSubarray) assignedResources() *proxy.ResourceSet {
	s.Lock()
	defer s.Unlock()
	return s.assigned
}

type mockStation struct {
	mockDevice
	// subarray id -> assigned blocks
	blocks       map[int][]int
	rejectAssign bool
}

func (s *mockStation) AssignChannelBlocks(subarrayID int, blocks []int) common.CommandResult {
	s.Lock()
	defer s.Unlock()
	if s.rejectAssign {
		return common.FailedResult("station refused channel blocks")
	}
	if s.blocks == nil {
		s.blocks = make(map[int][]int)
	}
	s.blocks[subarrayID] = append([]int(nil), blocks...)
	return common.OKResult()
}

func (s *mockStation) ReleaseChannelBlocks(subarrayID int) common.CommandResult {
	s.Lock()
	defer s.Unlock()
	delete(s.blocks, subarrayID)
	return common.OKResult()
}

func (s *mockStation) blocksFor(subarrayID int) []int {
	s.Lock()
	defer s.Unlock()
	return append([]int(nil), s.blocks[subarrayID]...)
}

type beamIdentity struct {
	subarrayID  int
	stationID   int
	stationFQDN common.FQDN
}

type mockBeam struct {
	mockDevice
	identity *beamIdentity
}

func (b *mockBeam) SetBeamIdentity(subarrayID int, stationID int, stationFQDN common.FQDN) common.CommandResult {
	b.Lock()
	defer b.Unlock()
	b.identity = &beamIdentity{subarrayID, stationID, stationFQDN}
	return common.OKResult()
}

func (b *mockBeam) ClearBeamIdentity() common.CommandResult {
	b.Lock()
	defer b.Unlock()
	b.identity = nil
	return common.OKResult()
}

func (b *mockBeam) currentIdentity() *beamIdentity {
	b.Lock()
	defer b.Unlock()
	return b.identity
}

// taskRecorder turns the asynchronous task callback into something tests can
// wait on.
type taskRecord struct {
	name    string
	state   common.TaskState
	message string
}

type taskRecorder struct {
	terminal chan taskRecord
}

func newTaskRecorder() *taskRecorder {
	return &taskRecorder{terminal: make(chan taskRecord, 16)}
}

func (tr *taskRecorder) callback(taskID string, name string, state common.TaskState, message string) {
	switch state {
	case common.TaskCompleted, common.TaskFailed, common.TaskAborted:
		tr.terminal <- taskRecord{name, state, message}
	}
}

func (tr *taskRecorder) waitTerminal(t *testing.T) taskRecord {
	t.Helper()
	select {
	case record := <-tr.terminal:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal task state arrived")
		return taskRecord{}
	}
}

// controllerHarness wires a two station, one subarray layout into a
// controller with mock proxies on every edge.
type controllerHarness struct {
	cm       *ComponentManager
	tasks    *taskRecorder
	subarray *mockSubarray
	stationA *mockStation
	stationB *mockStation
	// beam token -> mock
	stationBeams  map[int]*mockBeam
	subarrayBeams map[int]*mockBeam
	allFQDNs      []common.FQDN
}

const (
	subarrayFQDN = "low-mccs/subarray/01"
	stationAFQDN = "low-mccs/station/001"
	stationBFQDN = "low-mccs/station/002"
)

func newControllerHarness(t *testing.T) *controllerHarness {
	t.Helper()
	h := &controllerHarness{
		tasks:         newTaskRecorder(),
		subarray:      &mockSubarray{mockDevice: mockDevice{fqdn: subarrayFQDN}},
		stationA:      &mockStation{mockDevice: mockDevice{fqdn: stationAFQDN}},
		stationB:      &mockStation{mockDevice: mockDevice{fqdn: stationBFQDN}},
		stationBeams:  make(map[int]*mockBeam),
		subarrayBeams: make(map[int]*mockBeam),
	}

	conf := configs.ControllerConfig{
		Subarrays: []configs.SubarrayConfig{
			{ID: 1, FQDN: subarrayFQDN},
			{ID: 2, FQDN: "low-mccs/subarray/02"},
		},
		Stations: []configs.StationConfig{
			{ID: 1, FQDN: stationAFQDN, ChannelBlocks: 48},
			{ID: 2, FQDN: stationBFQDN, ChannelBlocks: 48},
		},
	}
	devices := Devices{
		Subarrays: map[int]proxy.Resourceable{
			1: h.subarray,
			2: &mockSubarray{mockDevice: mockDevice{fqdn: "low-mccs/subarray/02"}},
		},
		Stations: map[common.FQDN]proxy.StationDevice{
			stationAFQDN: h.stationA,
			stationBFQDN: h.stationB,
		},
		StationBeams:  make(map[int]proxy.BeamDevice),
		SubarrayBeams: make(map[int]proxy.BeamDevice),
	}
	for id := 1; id <= 4; id++ {
		fqdn := common.FQDN(fmt.Sprintf("low-mccs/beam/%02d", id))
		beam := &mockBeam{mockDevice: mockDevice{fqdn: fqdn}}
		h.stationBeams[id] = beam
		devices.StationBeams[id] = beam
		conf.StationBeams = append(conf.StationBeams, configs.BeamConfig{ID: id, FQDN: fqdn})
	}
	for id := 1; id <= 2; id++ {
		fqdn := common.FQDN(fmt.Sprintf("low-mccs/subarraybeam/%02d", id))
		beam := &mockBeam{mockDevice: mockDevice{fqdn: fqdn}}
		h.subarrayBeams[id] = beam
		devices.SubarrayBeams[id] = beam
		conf.SubarrayBeams = append(conf.SubarrayBeams, configs.BeamConfig{ID: id, FQDN: fqdn})
	}

	for _, sub := range conf.Subarrays {
		h.allFQDNs = append(h.allFQDNs, sub.FQDN)
	}
	for _, station := range conf.Stations {
		h.allFQDNs = append(h.allFQDNs, station.FQDN)
	}
	for _, beam := range conf.StationBeams {
		h.allFQDNs = append(h.allFQDNs, beam.FQDN)
	}
	for _, beam := range conf.SubarrayBeams {
		h.allFQDNs = append(h.allFQDNs, beam.FQDN)
	}

	cm, err := NewComponentManager(conf, devices, h.tasks.callback, nil, nil, nil)
	if err != nil {
		t.Fatalf("building controller: %v", err)
	}
	h.cm = cm
	return h
}

// powerUp reports every child communicating and ON, the precondition for
// allocation.
func (h *controllerHarness) powerUp() {
	for _, fqdn := range h.allFQDNs {
		h.cm.CommunicationStateChanged(fqdn, common.CommunicationEstablished)
		h.cm.PowerStateChanged(fqdn, common.PowerOn)
	}
}
