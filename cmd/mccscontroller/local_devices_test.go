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
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
)

// recordingSink captures the events a device reports to its parent.
type recordingSink struct {
	sync.Mutex
	health map[common.FQDN]common.HealthState
}

func newRecordingSink() *recordingSink {
	return &recordingSink{health: make(map[common.FQDN]common.HealthState)}
}

func (r *recordingSink) CommunicationStateChanged(common.FQDN, common.CommunicationState) {}
func (r *recordingSink) PowerStateChanged(common.FQDN, common.PowerState)                 {}

func (r *recordingSink) HealthStateChanged(fqdn common.FQDN, state *common.HealthState) {
	r.Lock()
	defer r.Unlock()
	if state != nil {
		r.health[fqdn] = *state
	}
}

func (r *recordingSink) healthOf(fqdn common.FQDN) (common.HealthState, bool) {
	r.Lock()
	defer r.Unlock()
	state, ok := r.health[fqdn]
	return state, ok
}

func TestLocalBeamHealthFollowsAssignment(t *testing.T) {
	parent := &sinkRef{}
	sink := newRecordingSink()
	parent.bind(sink)
	beam := newLocalBeam("low-mccs/beam/01", parent)

	beam.StartCommunicating()
	// no phase lock until the beam is assigned
	assert.Equal(t, beam.health.Health(), common.HealthDegraded)

	beam.SetBeamIdentity(1, 1, "low-mccs/station/001")
	assert.Equal(t, beam.health.Health(), common.HealthOK)

	beam.ClearBeamIdentity()
	assert.Equal(t, beam.health.Health(), common.HealthDegraded)

	// health changes reach the parent sink
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state, ok := sink.healthOf("low-mccs/beam/01"); ok && state == common.HealthDegraded {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("beam health never reached the sink")
}

func TestLocalBeamUnknownWhileNotCommunicating(t *testing.T) {
	parent := &sinkRef{}
	beam := newLocalBeam("low-mccs/beam/02", parent)

	assert.Equal(t, beam.health.Health(), common.HealthUnknown)

	beam.StartCommunicating()
	assert.Equal(t, beam.health.Health(), common.HealthDegraded)

	beam.StopCommunicating()
	assert.Equal(t, beam.health.Health(), common.HealthUnknown)
}