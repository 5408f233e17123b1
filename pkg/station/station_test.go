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

package station

import (
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common/configs"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
)

// fakeDevice counts commands; the test harness feeds the resulting state
// changes back into the station through the event sink, the way a real
// transport would.
type fakeDevice struct {
	sync.Mutex
	fqdn     common.FQDN
	onCalls  int
	offCalls int
	reject   bool
}

func (f *fakeDevice) FQDN() common.FQDN { return f.fqdn }

func (f *fakeDevice) StartCommunicating() common.CommandResult { return common.OKResult() }
func (f *fakeDevice) StopCommunicating() common.CommandResult  { return common.OKResult() }

func (f *fakeDevice) On() common.CommandResult {
	f.Lock()
	defer f.Unlock()
	if f.reject {
		return common.FailedResult("device refused")
	}
	f.onCalls++
	return common.OKResult()
}

func (f *fakeDevice) Off() common.CommandResult {
	f.Lock()
	defer f.Unlock()
	f.offCalls++
	return common.OKResult()
}

func (f *fakeDevice) Standby() common.CommandResult { return common.OKResult() }

func (f *fakeDevice) onCount() int {
	f.Lock()
	defer f.Unlock()
	return f.onCalls
}

func (f *fakeDevice) offCount() int {
	f.Lock()
	defer f.Unlock()
	return f.offCalls
}

type stationHarness struct {
	cm       *ComponentManager
	apiu     *fakeDevice
	tiles    []*fakeDevice
	antennas []*fakeDevice
}

func newStationHarness(t *testing.T) *stationHarness {
	t.Helper()
	h := &stationHarness{
		apiu: &fakeDevice{fqdn: "low-mccs/apiu/001"},
		tiles: []*fakeDevice{
			{fqdn: "low-mccs/tile/0001"},
			{fqdn: "low-mccs/tile/0002"},
		},
		antennas: []*fakeDevice{
			{fqdn: "low-mccs/antenna/000001"},
			{fqdn: "low-mccs/antenna/000002"},
		},
	}
	conf := configs.StationConfig{
		ID:            1,
		FQDN:          "low-mccs/station/001",
		APIU:          h.apiu.fqdn,
		ChannelBlocks: 48,
	}
	tiles := make(map[common.FQDN]proxy.Device)
	for _, tile := range h.tiles {
		conf.Tiles = append(conf.Tiles, tile.fqdn)
		tiles[tile.fqdn] = tile
	}
	antennas := make(map[common.FQDN]proxy.Device)
	for _, antenna := range h.antennas {
		conf.Antennas = append(conf.Antennas, antenna.fqdn)
		antennas[antenna.fqdn] = antenna
	}
	h.cm = NewComponentManager(conf, h.apiu, tiles, antennas, nil, nil, nil, nil)
	return h
}

// establish reports every device communicating and at the given power state.
func (h *stationHarness) establish(power common.PowerState) {
	for _, device := range h.allDevices() {
		h.cm.CommunicationStateChanged(device.fqdn, common.CommunicationEstablished)
		h.cm.PowerStateChanged(device.fqdn, power)
	}
}

func (h *stationHarness) allDevices() []*fakeDevice {
	devices := []*fakeDevice{h.apiu}
	devices = append(devices, h.tiles...)
	return append(devices, h.antennas...)
}

func (h *stationHarness) waitForAPIUOn(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.apiu.onCount() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("APIU never received the on command")
}

func (h *stationHarness) waitForCascade(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done := true
		for _, device := range h.tiles {
			if device.onCount() == 0 {
				done = false
			}
		}
		for _, device := range h.antennas {
			if device.onCount() == 0 {
				done = false
			}
		}
		if done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("cascade never reached every tile and antenna")
}

func TestStationOnDeferredCascade(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)

	result := h.cm.On()
	assert.Equal(t, result.Disposition, common.CommandQueued)
	h.waitForAPIUOn(t)

	// nothing downstream until the APIU actually reports ON
	for _, tile := range h.tiles {
		assert.Equal(t, tile.onCount(), 0)
	}

	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	h.waitForCascade(t)
	for _, tile := range h.tiles {
		assert.Equal(t, tile.onCount(), 1)
	}
	for _, antenna := range h.antennas {
		assert.Equal(t, antenna.onCount(), 1)
	}
}

func TestStationOnImmediateCascade(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)

	h.cm.On()
	h.waitForCascade(t)

	// APIU already ON, never commanded again
	assert.Equal(t, h.apiu.onCount(), 0)
}

func TestStationCascadeExactlyOnce(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)

	h.cm.On()
	h.waitForAPIUOn(t)

	// the transport may repeat state reports; the sticky flag is consumed
	// on the first one
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	h.waitForCascade(t)

	for _, tile := range h.tiles {
		assert.Equal(t, tile.onCount(), 1)
	}
	for _, antenna := range h.antennas {
		assert.Equal(t, antenna.onCount(), 1)
	}
}

func TestStationCascadeSkipsUnitsAlreadyOn(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	h.cm.PowerStateChanged(h.tiles[0].fqdn, common.PowerOn)

	h.cm.On()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.tiles[1].onCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// the unit already ON never saw a second command
	assert.Equal(t, h.tiles[0].onCount(), 0)
	assert.Equal(t, h.tiles[1].onCount(), 1)
}

func TestStationOffCancelsPendingCascade(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)

	h.cm.On()
	h.waitForAPIUOn(t)

	// off supersedes the on still waiting for the APIU
	h.cm.Off()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.apiu.offCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Assert(t, h.apiu.offCount() > 0, "APIU never received the off command")

	// a late ON report must not cascade
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	for _, tile := range h.tiles {
		assert.Equal(t, tile.onCount(), 0)
	}
	for _, antenna := range h.antennas {
		assert.Equal(t, antenna.onCount(), 0)
	}
}

func TestStationUnsolicitedAPIUOnDoesNotCascade(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOff)

	// APIU reports ON without anyone having asked for it
	h.cm.PowerStateChanged(h.apiu.fqdn, common.PowerOn)
	time.Sleep(10 * time.Millisecond)
	for _, tile := range h.tiles {
		assert.Equal(t, tile.onCount(), 0)
	}
}

func TestStationPowerRollup(t *testing.T) {
	h := newStationHarness(t)
	assert.Equal(t, h.cm.PowerState(), common.PowerUnknown)

	h.establish(common.PowerOff)
	assert.Equal(t, h.cm.PowerState(), common.PowerOff)

	for _, device := range h.allDevices() {
		h.cm.PowerStateChanged(device.fqdn, common.PowerOn)
	}
	assert.Equal(t, h.cm.PowerState(), common.PowerOn)
	assert.Equal(t, h.cm.CommunicationState(), common.CommunicationEstablished)
}

func TestStationHealthRollup(t *testing.T) {
	h := newStationHarness(t)
	h.establish(common.PowerOn)
	// all devices communicating but none has offered a health opinion
	assert.Equal(t, h.cm.Health(), common.HealthOK)

	failed := common.HealthFailed
	h.cm.HealthStateChanged(h.tiles[0].fqdn, &failed)
	assert.Equal(t, h.cm.Health(), common.HealthFailed)

	h.cm.HealthStateChanged(h.tiles[0].fqdn, nil)
	assert.Equal(t, h.cm.Health(), common.HealthOK)
}

func TestStationChannelBlocksDriveObsState(t *testing.T) {
	h := newStationHarness(t)
	assert.Equal(t, h.cm.ObsState(), common.ObsEmpty)

	h.cm.AssignChannelBlocks(1, []int{1, 2, 3})
	assert.Equal(t, h.cm.ObsState(), common.ObsIdle)

	h.cm.SetConfigured(true)
	assert.Equal(t, h.cm.ObsState(), common.ObsReady)

	// a second subarray's lease keeps the station resourced
	h.cm.AssignChannelBlocks(2, []int{4, 5})
	h.cm.ReleaseChannelBlocks(1)
	assert.Equal(t, h.cm.ObsState(), common.ObsReady)

	h.cm.ReleaseChannelBlocks(2)
	assert.Equal(t, h.cm.ObsState(), common.ObsEmpty)
}
