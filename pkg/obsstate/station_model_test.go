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

package obsstate

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
)

func TestStationModelLifecycle(t *testing.T) {
	m := NewStationModel("station-1", nil)
	assert.Equal(t, m.State(), common.ObsEmpty)

	m.SetResourced(true)
	assert.Equal(t, m.State(), common.ObsIdle)

	m.SetConfigured(true)
	assert.Equal(t, m.State(), common.ObsReady)

	m.SetConfigured(false)
	assert.Equal(t, m.State(), common.ObsIdle)

	m.SetResourced(false)
	assert.Equal(t, m.State(), common.ObsEmpty)
}

func TestStationModelReleaseClearsConfigured(t *testing.T) {
	m := NewStationModel("station-1", nil)
	m.SetResourced(true)
	m.SetConfigured(true)
	assert.Equal(t, m.State(), common.ObsReady)

	// dropping resources force-clears configured, never leaving the
	// unreachable not-resourced-but-configured combination behind
	m.SetResourced(false)
	assert.Equal(t, m.State(), common.ObsEmpty)

	m.SetResourced(true)
	assert.Equal(t, m.State(), common.ObsIdle)
}

func TestStationModelCallbackOnlyOnChange(t *testing.T) {
	var calls []common.ObsState
	m := NewStationModel("station-1", func(state common.ObsState) {
		calls = append(calls, state)
	})
	m.SetResourced(true)
	m.SetResourced(true)
	m.SetConfigured(false)
	assert.Equal(t, len(calls), 1)
	assert.Equal(t, calls[0], common.ObsIdle)
}

func TestStationModelConfiguredWhileEmptyIgnored(t *testing.T) {
	m := NewStationModel("station-1", nil)
	// fact combination with no mapped state is logged and discarded
	m.SetConfigured(true)
	assert.Equal(t, m.State(), common.ObsEmpty)
}
