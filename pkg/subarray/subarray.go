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

// Package subarray drives one observing session through its observation
// lifecycle. Every command is gated by the observation state machine:
// commands that are not legal in the current state are rejected, never
// silently queued.
package subarray

import (
	"context"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/obsstate"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/task"
)

// ComponentManager owns one subarray's observation lifecycle and the
// resources currently assigned to it.
type ComponentManager struct {
	fqdn  common.FQDN
	id    int
	model *obsstate.SubarrayModel

	resources proxy.ResourceSet
	// scan configuration is a stub: the signal processing and calibration
	// math behind it lives outside this control core
	scanConfig map[string]any

	runner *task.Runner

	locking.Mutex
}

func NewComponentManager(id int, fqdn common.FQDN, taskCallback task.StatusCallback, obsCallback func(common.ObsState)) *ComponentManager {
	return &ComponentManager{
		fqdn:   fqdn,
		id:     id,
		model:  obsstate.NewSubarrayModel(fqdn, obsCallback),
		runner: task.NewRunner(fqdn, taskCallback),
	}
}

func (cm *ComponentManager) FQDN() common.FQDN {
	return cm.fqdn
}

func (cm *ComponentManager) ID() int {
	return cm.id
}

// ObsState returns the current observation state.
func (cm *ComponentManager) ObsState() common.ObsState {
	return cm.model.State()
}

// Resources returns the currently assigned resources.
func (cm *ComponentManager) Resources() proxy.ResourceSet {
	cm.Lock()
	defer cm.Unlock()
	return cm.resources
}

// AssignResources stores the resource set pushed down by the controller.
// Legal in EMPTY and IDLE; ends in IDLE (or EMPTY for an empty set).
func (cm *ComponentManager) AssignResources(resources proxy.ResourceSet) common.CommandResult {
	if err := cm.model.Fire(obsstate.ResourcingStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	cm.Lock()
	cm.resources = resources
	empty := len(resources.SubarrayBeamIDs) == 0 && len(resources.StationBeamIDs) == 0 && len(resources.ChannelBlocks) == 0
	cm.Unlock()

	trigger := obsstate.ResourcingSucceededWithResources
	if empty {
		trigger = obsstate.ResourcingSucceededNoResources
	}
	if err := cm.model.Fire(trigger); err != nil {
		return common.FailedResult(err.Error())
	}
	log.Log(log.Subarray).Info("resources assigned",
		zap.String("subarray", cm.fqdn),
		zap.Int("subarrayBeams", len(resources.SubarrayBeamIDs)),
		zap.Int("stationBeams", len(resources.StationBeamIDs)))
	return common.OKResult()
}

// ReleaseAllResources drops everything assigned to this subarray. Releasing
// an already empty subarray is a fast no-op.
func (cm *ComponentManager) ReleaseAllResources() common.CommandResult {
	if cm.model.State() == common.ObsEmpty {
		return common.OKResult()
	}
	if err := cm.model.Fire(obsstate.ResourcingStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	cm.Lock()
	cm.resources = proxy.ResourceSet{}
	cm.scanConfig = nil
	cm.Unlock()
	if err := cm.model.Fire(obsstate.ResourcingSucceededNoResources); err != nil {
		return common.FailedResult(err.Error())
	}
	return common.OKResult()
}

// Configure applies a scan configuration. Legal in IDLE and READY.
func (cm *ComponentManager) Configure(config map[string]any) common.CommandResult {
	if err := cm.model.Fire(obsstate.ConfiguringStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	cm.Lock()
	cm.scanConfig = config
	cm.Unlock()
	if err := cm.model.Fire(obsstate.ConfiguringSucceeded); err != nil {
		return common.FailedResult(err.Error())
	}
	return common.OKResult()
}

// Scan starts scanning. Legal in READY only.
func (cm *ComponentManager) Scan() common.CommandResult {
	if err := cm.model.Fire(obsstate.ScanStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	return common.OKResult()
}

// EndScan stops scanning. Legal in SCANNING only.
func (cm *ComponentManager) EndScan() common.CommandResult {
	if err := cm.model.Fire(obsstate.ScanEnded); err != nil {
		return common.RejectedResult(err.Error())
	}
	return common.OKResult()
}

// Abort interrupts the current activity. Long-running: the terminal ABORTED
// observation state is reached through the task.
func (cm *ComponentManager) Abort() common.CommandResult {
	if err := cm.model.Fire(obsstate.AbortStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	_, result := cm.runner.Submit("abort", func(ctx context.Context) error {
		cm.runner.AbortAll()
		return cm.model.Fire(obsstate.AbortCompleted)
	})
	return result
}

// ObsReset recovers from ABORTED or FAULT back to IDLE, keeping resources.
func (cm *ComponentManager) ObsReset() common.CommandResult {
	if err := cm.model.Fire(obsstate.ObsResetStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	cm.Lock()
	cm.scanConfig = nil
	cm.Unlock()
	if err := cm.model.Fire(obsstate.ObsResetCompleted); err != nil {
		return common.FailedResult(err.Error())
	}
	return common.OKResult()
}

// Restart recovers from ABORTED or FAULT back to EMPTY, dropping resources.
func (cm *ComponentManager) Restart() common.CommandResult {
	if err := cm.model.Fire(obsstate.RestartStarted); err != nil {
		return common.RejectedResult(err.Error())
	}
	cm.Lock()
	cm.resources = proxy.ResourceSet{}
	cm.scanConfig = nil
	cm.Unlock()
	if err := cm.model.Fire(obsstate.RestartCompleted); err != nil {
		return common.FailedResult(err.Error())
	}
	return common.OKResult()
}

// ObsFault records an observation fault. Legal from any state.
func (cm *ComponentManager) ObsFault() {
	if err := cm.model.Fire(obsstate.ObsFault); err != nil {
		log.Log(log.Subarray).Error("obsfault transition failed",
			zap.String("subarray", cm.fqdn),
			zap.Error(err))
	}
}
