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
	"context"
	"errors"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

// ----------------------------------
// subarray observation triggers
// ----------------------------------
type Trigger int

const (
	ResourcingStarted Trigger = iota
	ResourcingSucceededWithResources
	ResourcingSucceededNoResources
	ConfiguringStarted
	ConfiguringSucceeded
	ScanStarted
	ScanEnded
	AbortStarted
	AbortCompleted
	ObsResetStarted
	ObsResetCompleted
	RestartStarted
	RestartCompleted
	ObsFault
)

func (t Trigger) String() string {
	return [...]string{
		"resourcing_started",
		"resourcing_succeeded_with_resources",
		"resourcing_succeeded_no_resources",
		"configuring_started",
		"configuring_succeeded",
		"scan_started",
		"scan_ended",
		"abort_started",
		"abort_completed",
		"obsreset_started",
		"obsreset_completed",
		"restart_started",
		"restart_completed",
		"obsfault",
	}[t]
}

var obsStateByName = map[string]common.ObsState{
	common.ObsEmpty.String():       common.ObsEmpty,
	common.ObsResourcing.String():  common.ObsResourcing,
	common.ObsIdle.String():        common.ObsIdle,
	common.ObsConfiguring.String(): common.ObsConfiguring,
	common.ObsReady.String():       common.ObsReady,
	common.ObsScanning.String():    common.ObsScanning,
	common.ObsAborting.String():    common.ObsAborting,
	common.ObsAborted.String():     common.ObsAborted,
	common.ObsResetting.String():   common.ObsResetting,
	common.ObsRestarting.String():  common.ObsRestarting,
	common.ObsFault.String():       common.ObsFault,
}

func allObsStates() []string {
	return []string{
		common.ObsEmpty.String(),
		common.ObsResourcing.String(),
		common.ObsIdle.String(),
		common.ObsConfiguring.String(),
		common.ObsReady.String(),
		common.ObsScanning.String(),
		common.ObsAborting.String(),
		common.ObsAborted.String(),
		common.ObsResetting.String(),
		common.ObsRestarting.String(),
		common.ObsFault.String(),
	}
}

// SubarrayModel is the explicit transition table of a subarray: every
// trigger maps a specific current state to a target state. Firing a trigger
// that is not declared for the current state fails loudly instead of
// silently no-opping, since the observation state gates which commands are
// currently legal.
type SubarrayModel struct {
	name     string
	machine  *fsm.FSM
	callback func(common.ObsState)
}

func NewSubarrayModel(name string, callback func(common.ObsState)) *SubarrayModel {
	m := &SubarrayModel{
		name:     name,
		callback: callback,
	}
	m.machine = fsm.NewFSM(
		common.ObsEmpty.String(), fsm.Events{
			{
				Name: ResourcingStarted.String(),
				Src:  []string{common.ObsEmpty.String(), common.ObsIdle.String()},
				Dst:  common.ObsResourcing.String(),
			}, {
				Name: ResourcingSucceededWithResources.String(),
				Src:  []string{common.ObsResourcing.String()},
				Dst:  common.ObsIdle.String(),
			}, {
				Name: ResourcingSucceededNoResources.String(),
				Src:  []string{common.ObsResourcing.String()},
				Dst:  common.ObsEmpty.String(),
			}, {
				Name: ConfiguringStarted.String(),
				Src:  []string{common.ObsIdle.String(), common.ObsReady.String()},
				Dst:  common.ObsConfiguring.String(),
			}, {
				Name: ConfiguringSucceeded.String(),
				Src:  []string{common.ObsConfiguring.String()},
				Dst:  common.ObsReady.String(),
			}, {
				Name: ScanStarted.String(),
				Src:  []string{common.ObsReady.String()},
				Dst:  common.ObsScanning.String(),
			}, {
				Name: ScanEnded.String(),
				Src:  []string{common.ObsScanning.String()},
				Dst:  common.ObsReady.String(),
			}, {
				Name: AbortStarted.String(),
				Src: []string{common.ObsResourcing.String(), common.ObsIdle.String(),
					common.ObsConfiguring.String(), common.ObsReady.String(),
					common.ObsScanning.String(), common.ObsResetting.String()},
				Dst: common.ObsAborting.String(),
			}, {
				Name: AbortCompleted.String(),
				Src:  []string{common.ObsAborting.String()},
				Dst:  common.ObsAborted.String(),
			}, {
				Name: ObsResetStarted.String(),
				Src:  []string{common.ObsAborted.String(), common.ObsFault.String()},
				Dst:  common.ObsResetting.String(),
			}, {
				Name: ObsResetCompleted.String(),
				Src:  []string{common.ObsResetting.String()},
				Dst:  common.ObsIdle.String(),
			}, {
				Name: RestartStarted.String(),
				Src:  []string{common.ObsAborted.String(), common.ObsFault.String()},
				Dst:  common.ObsRestarting.String(),
			}, {
				Name: RestartCompleted.String(),
				Src:  []string{common.ObsRestarting.String()},
				Dst:  common.ObsEmpty.String(),
			}, {
				Name: ObsFault.String(),
				Src:  allObsStates(),
				Dst:  common.ObsFault.String(),
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, event *fsm.Event) {
				log.Log(log.ObsState).Info("observation state transition",
					zap.String("subarray", m.name),
					zap.String("source", event.Src),
					zap.String("destination", event.Dst),
					zap.String("trigger", event.Event))
				if m.callback != nil {
					m.callback(obsStateByName[event.Dst])
				}
			},
		},
	)
	return m
}

// Fire applies a trigger to the current state. The returned error is non-nil
// when the trigger is not declared for the current state. A declared trigger
// that lands on the current state (obsfault while already in FAULT) is fine.
func (m *SubarrayModel) Fire(trigger Trigger) error {
	err := m.machine.Event(context.Background(), trigger.String())
	if err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
	}
	return err
}

// CanFire reports whether the trigger is declared for the current state.
func (m *SubarrayModel) CanFire(trigger Trigger) bool {
	return m.machine.Can(trigger.String())
}

// State returns the current observation state.
func (m *SubarrayModel) State() common.ObsState {
	return obsStateByName[m.machine.Current()]
}
