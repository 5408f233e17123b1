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

package health

import (
	"sync/atomic"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
)

// StationBeamModel is a health model variant for station beams: a beam that
// has lost phase lock is DEGRADED even when everything else reports OK.
type StationBeamModel struct {
	*Model
	beamLocked atomic.Bool
}

// NewStationBeamModel creates a station beam health model. The beam starts
// unlocked.
func NewStationBeamModel(name string, callback func(common.HealthState)) *StationBeamModel {
	sbm := &StationBeamModel{}
	sbm.Model = NewModel(name, nil, callback)
	sbm.Model.extraSeverity = func(severity common.HealthState) bool {
		return severity == common.HealthDegraded && !sbm.beamLocked.Load()
	}
	return sbm
}

// SetBeamLocked records the beam phase lock state and re-evaluates.
func (sbm *StationBeamModel) SetBeamLocked(locked bool) {
	sbm.beamLocked.Store(locked)
	sbm.Lock()
	defer sbm.Unlock()
	sbm.updateHealth()
}
