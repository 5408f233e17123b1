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

// Package obsstate derives observation states from boolean facts and
// discrete completion triggers. The observation state is never freely
// settable: it gates which commands are currently legal.
package obsstate

import (
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

type stationFacts struct {
	resourced  bool
	configured bool
}

// stationTable is the pure lookup from facts to observation state. The
// missing combination (not resourced but configured) cannot be reached
// because clearing resourced forces configured clear first; if it shows up
// anyway it is logged, never raised.
var stationTable = map[stationFacts]common.ObsState{
	{resourced: false, configured: false}: common.ObsEmpty,
	{resourced: true, configured: false}:  common.ObsIdle,
	{resourced: true, configured: true}:   common.ObsReady,
}

// StationModel derives a station's observation state from two facts.
type StationModel struct {
	name     string
	facts    stationFacts
	state    common.ObsState
	callback func(common.ObsState)

	locking.Mutex
}

func NewStationModel(name string, callback func(common.ObsState)) *StationModel {
	return &StationModel{
		name:     name,
		state:    common.ObsEmpty,
		callback: callback,
	}
}

// SetResourced records whether the station holds resources. Clearing it
// force-clears configured first.
func (m *StationModel) SetResourced(resourced bool) {
	m.Lock()
	defer m.Unlock()
	if !resourced {
		m.facts.configured = false
	}
	m.facts.resourced = resourced
	m.derive()
}

// SetConfigured records whether the station is configured.
func (m *StationModel) SetConfigured(configured bool) {
	m.Lock()
	defer m.Unlock()
	m.facts.configured = configured
	m.derive()
}

// State returns the current derived observation state.
func (m *StationModel) State() common.ObsState {
	m.Lock()
	defer m.Unlock()
	return m.state
}

func (m *StationModel) derive() {
	newState, ok := stationTable[m.facts]
	if !ok {
		log.Log(log.ObsState).Warn("no observation state for fact combination",
			zap.String("component", m.name),
			zap.Bool("resourced", m.facts.resourced),
			zap.Bool("configured", m.facts.configured))
		return
	}
	if newState == m.state {
		return
	}
	log.Log(log.ObsState).Info("observation state changed",
		zap.String("component", m.name),
		zap.Stringer("from", m.state),
		zap.Stringer("to", newState))
	m.state = newState
	if m.callback != nil {
		m.callback(newState)
	}
}
