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
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
)

// Command verbs accepted by Dispatch.
const (
	VerbOn       = "on"
	VerbOff      = "off"
	VerbStandby  = "standby"
	VerbAllocate = "allocate"
	VerbRelease  = "release"
)

// CommandPayload carries the arguments of a dispatched verb. Only the fields
// the verb needs are read.
type CommandPayload struct {
	SubarrayID int
	Allocation *AllocationRequest
}

type commandHandler func(cm *ComponentManager, payload CommandPayload) common.CommandResult

// commandTable maps verbs to handlers. Long-running verbs return a QUEUED
// disposition carrying the task id instead of blocking.
var commandTable = map[string]commandHandler{
	VerbOn: func(cm *ComponentManager, _ CommandPayload) common.CommandResult {
		return cm.On()
	},
	VerbOff: func(cm *ComponentManager, _ CommandPayload) common.CommandResult {
		return cm.Off()
	},
	VerbStandby: func(cm *ComponentManager, _ CommandPayload) common.CommandResult {
		return cm.Standby()
	},
	VerbAllocate: func(cm *ComponentManager, payload CommandPayload) common.CommandResult {
		if payload.Allocation == nil {
			return common.RejectedResult("allocate needs an allocation request")
		}
		return cm.Allocate(*payload.Allocation)
	},
	VerbRelease: func(cm *ComponentManager, payload CommandPayload) common.CommandResult {
		return cm.Release(payload.SubarrayID)
	},
}

// Dispatch routes a verb to its handler. Unknown verbs are rejected.
func (cm *ComponentManager) Dispatch(verb string, payload CommandPayload) common.CommandResult {
	handler, ok := commandTable[verb]
	if !ok {
		return common.RejectedResult(fmt.Sprintf("unknown command verb %q", verb))
	}
	return handler(cm, payload)
}

// StartCommunicating asks every owned proxy to establish communication.
func (cm *ComponentManager) StartCommunicating() common.CommandResult {
	cm.forEachDevice(func(device proxy.Device) {
		device.StartCommunicating()
	})
	return common.OKResult()
}

// StopCommunicating asks every owned proxy to stop communicating.
func (cm *ComponentManager) StopCommunicating() common.CommandResult {
	cm.forEachDevice(func(device proxy.Device) {
		device.StopCommunicating()
	})
	cm.healthModel.SetCommunicating(false)
	return common.OKResult()
}

// On powers the whole tree on. Communication must be established first:
// commands to devices we cannot talk to are rejected, never silently queued.
func (cm *ComponentManager) On() common.CommandResult {
	if cm.commAgg.Aggregate() != common.CommunicationEstablished {
		return common.RejectedResult(common.ErrNotCommunicating.Error())
	}
	_, result := cm.runner.Submit("on", func(ctx context.Context) error {
		return cm.fanOutPower(ctx, func(device proxy.Device) common.CommandResult {
			return device.On()
		})
	})
	return result
}

// Off powers the whole tree off.
func (cm *ComponentManager) Off() common.CommandResult {
	if cm.commAgg.Aggregate() != common.CommunicationEstablished {
		return common.RejectedResult(common.ErrNotCommunicating.Error())
	}
	_, result := cm.runner.Submit("off", func(ctx context.Context) error {
		return cm.fanOutPower(ctx, func(device proxy.Device) common.CommandResult {
			return device.Off()
		})
	})
	return result
}

// Standby puts the whole tree on standby.
func (cm *ComponentManager) Standby() common.CommandResult {
	if cm.commAgg.Aggregate() != common.CommunicationEstablished {
		return common.RejectedResult(common.ErrNotCommunicating.Error())
	}
	_, result := cm.runner.Submit("standby", func(ctx context.Context) error {
		return cm.fanOutPower(ctx, func(device proxy.Device) common.CommandResult {
			return device.Standby()
		})
	})
	return result
}

func (cm *ComponentManager) fanOutPower(ctx context.Context, command func(device proxy.Device) common.CommandResult) error {
	failed := false
	var aborted error
	cm.forEachDevice(func(device proxy.Device) {
		if aborted != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			aborted = err
			return
		}
		if result := command(device); result.Disposition == common.CommandFailed {
			log.Log(log.Controller).Error("device refused power command",
				zap.String("fqdn", device.FQDN()))
			failed = true
		}
	})
	if aborted != nil {
		return aborted
	}
	if failed {
		return common.ErrDownstreamRejected
	}
	return nil
}

func (cm *ComponentManager) forEachDevice(fn func(device proxy.Device)) {
	for _, device := range cm.devices.Subarrays {
		fn(device)
	}
	for _, device := range cm.devices.Stations {
		fn(device)
	}
	for _, device := range cm.devices.StationBeams {
		fn(device)
	}
	for _, device := range cm.devices.SubarrayBeams {
		fn(device)
	}
}
