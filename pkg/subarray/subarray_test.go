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

package subarray

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
)

func newTestSubarray() *ComponentManager {
	return NewComponentManager(1, "low-mccs/subarray/01", nil, nil)
}

func someResources() proxy.ResourceSet {
	return proxy.ResourceSet{
		SubarrayBeamIDs: []int{1},
		StationBeamIDs:  []int{1, 2},
		ChannelBlocks: map[common.FQDN][]int{
			"low-mccs/station/001": {1, 2, 3},
		},
	}
}

func waitForObsState(t *testing.T, cm *ComponentManager, want common.ObsState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cm.ObsState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("subarray never reached %s, stuck in %s", want, cm.ObsState())
}

func TestSubarrayAssignRelease(t *testing.T) {
	cm := newTestSubarray()
	assert.Equal(t, cm.ObsState(), common.ObsEmpty)

	result := cm.AssignResources(someResources())
	assert.Equal(t, result.Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsIdle)
	assert.DeepEqual(t, cm.Resources().StationBeamIDs, []int{1, 2})

	result = cm.ReleaseAllResources()
	assert.Equal(t, result.Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsEmpty)
	assert.Equal(t, len(cm.Resources().StationBeamIDs), 0)
}

func TestSubarrayAssignEmptySetStaysEmpty(t *testing.T) {
	cm := newTestSubarray()
	result := cm.AssignResources(proxy.ResourceSet{})
	assert.Equal(t, result.Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsEmpty)
}

func TestSubarrayReleaseWhenEmptyIsNoop(t *testing.T) {
	cm := newTestSubarray()
	result := cm.ReleaseAllResources()
	assert.Equal(t, result.Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsEmpty)
}

func TestSubarrayCommandGating(t *testing.T) {
	cm := newTestSubarray()

	// nothing observation-related is legal while EMPTY
	assert.Equal(t, cm.Configure(nil).Disposition, common.CommandRejected)
	assert.Equal(t, cm.Scan().Disposition, common.CommandRejected)
	assert.Equal(t, cm.EndScan().Disposition, common.CommandRejected)
	assert.Equal(t, cm.ObsReset().Disposition, common.CommandRejected)
	assert.Equal(t, cm.Restart().Disposition, common.CommandRejected)

	cm.AssignResources(someResources())
	assert.Equal(t, cm.Scan().Disposition, common.CommandRejected)

	assert.Equal(t, cm.Configure(map[string]any{"channels": 8}).Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsReady)

	assert.Equal(t, cm.Scan().Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsScanning)
	assert.Equal(t, cm.Configure(nil).Disposition, common.CommandRejected)

	assert.Equal(t, cm.EndScan().Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsReady)
}

func TestSubarrayAbortAndObsReset(t *testing.T) {
	cm := newTestSubarray()
	cm.AssignResources(someResources())
	cm.Configure(nil)
	cm.Scan()

	result := cm.Abort()
	assert.Equal(t, result.Disposition, common.CommandQueued)
	waitForObsState(t, cm, common.ObsAborted)

	// resources survive an obsreset
	assert.Equal(t, cm.ObsReset().Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsIdle)
	assert.DeepEqual(t, cm.Resources().SubarrayBeamIDs, []int{1})
}

func TestSubarrayRestartDropsResources(t *testing.T) {
	cm := newTestSubarray()
	cm.AssignResources(someResources())

	result := cm.Abort()
	assert.Equal(t, result.Disposition, common.CommandQueued)
	waitForObsState(t, cm, common.ObsAborted)

	assert.Equal(t, cm.Restart().Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsEmpty)
	assert.Equal(t, len(cm.Resources().SubarrayBeamIDs), 0)
}

func TestSubarrayObsFaultRecovery(t *testing.T) {
	cm := newTestSubarray()
	cm.AssignResources(someResources())
	cm.ObsFault()
	assert.Equal(t, cm.ObsState(), common.ObsFault)

	// everything except recovery is rejected in FAULT
	assert.Equal(t, cm.AssignResources(someResources()).Disposition, common.CommandRejected)
	assert.Equal(t, cm.Scan().Disposition, common.CommandRejected)

	assert.Equal(t, cm.ObsReset().Disposition, common.CommandOK)
	assert.Equal(t, cm.ObsState(), common.ObsIdle)
}
