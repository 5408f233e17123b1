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

package common

// FQDN is the opaque identity of a managed device. It is unique while the
// device exists and is the universal map key throughout the control core.
type FQDN = string

// ----------------------------------
// communication states
// a composite reports the worst value present among its children
// ----------------------------------
type CommunicationState int

const (
	CommunicationDisabled CommunicationState = iota
	CommunicationNotEstablished
	CommunicationEstablished
)

func (cs CommunicationState) String() string {
	return [...]string{"DISABLED", "NOT_ESTABLISHED", "ESTABLISHED"}[cs]
}

// WorstCommunicationState returns the worst state present, DISABLED being the
// worst. An empty input reports DISABLED.
func WorstCommunicationState(states []CommunicationState) CommunicationState {
	worst := CommunicationEstablished
	if len(states) == 0 {
		return CommunicationDisabled
	}
	for _, state := range states {
		if state < worst {
			worst = state
		}
	}
	return worst
}

// ----------------------------------
// power states
// ----------------------------------
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerStandby
	PowerOn
)

func (ps PowerState) String() string {
	return [...]string{"UNKNOWN", "OFF", "STANDBY", "ON"}[ps]
}

// WorstPowerState returns the first of UNKNOWN, OFF, STANDBY, ON present
// among the inputs. An empty input reports UNKNOWN.
func WorstPowerState(states []PowerState) PowerState {
	worst := PowerOn
	if len(states) == 0 {
		return PowerUnknown
	}
	for _, state := range states {
		if state < worst {
			worst = state
		}
	}
	return worst
}

// ----------------------------------
// health states
// rollup precedence is FAILED > UNKNOWN > DEGRADED > OK, which does not
// match the numeric order, so severity scans use HealthSeverityOrder.
// ----------------------------------
type HealthState int

const (
	HealthOK HealthState = iota
	HealthDegraded
	HealthFailed
	HealthUnknown
)

func (hs HealthState) String() string {
	return [...]string{"OK", "DEGRADED", "FAILED", "UNKNOWN"}[hs]
}

// HealthSeverityOrder lists the non-OK health states from most to least
// severe. Rollups return the first of these present, otherwise OK.
var HealthSeverityOrder = []HealthState{HealthFailed, HealthUnknown, HealthDegraded}

// ----------------------------------
// observation states
// derived values, never freely settable
// ----------------------------------
type ObsState int

const (
	ObsEmpty ObsState = iota
	ObsResourcing
	ObsIdle
	ObsConfiguring
	ObsReady
	ObsScanning
	ObsAborting
	ObsAborted
	ObsResetting
	ObsRestarting
	ObsFault
)

func (os ObsState) String() string {
	return [...]string{"EMPTY", "RESOURCING", "IDLE", "CONFIGURING", "READY", "SCANNING", "ABORTING", "ABORTED", "RESETTING", "RESTARTING", "FAULT"}[os]
}

// ----------------------------------
// task states
// terminal status of long-running commands, reported asynchronously
// ----------------------------------
type TaskState int

const (
	TaskInProgress TaskState = iota
	TaskCompleted
	TaskFailed
	TaskAborted
)

func (ts TaskState) String() string {
	return [...]string{"IN_PROGRESS", "COMPLETED", "FAILED", "ABORTED"}[ts]
}

// ----------------------------------
// command dispositions
// immediate verdict of a command call; long-running commands return QUEUED
// and report their terminal state through the task status callback
// ----------------------------------
type Disposition int

const (
	CommandOK Disposition = iota
	CommandFailed
	CommandQueued
	CommandRejected
)

func (d Disposition) String() string {
	return [...]string{"OK", "FAILED", "QUEUED", "REJECTED"}[d]
}

// CommandResult is the synchronous answer to every command: a disposition
// plus a human readable message.
type CommandResult struct {
	Disposition Disposition
	Message     string
}

func OKResult() CommandResult {
	return CommandResult{Disposition: CommandOK}
}

func QueuedResult(message string) CommandResult {
	return CommandResult{Disposition: CommandQueued, Message: message}
}

func FailedResult(message string) CommandResult {
	return CommandResult{Disposition: CommandFailed, Message: message}
}

func RejectedResult(message string) CommandResult {
	return CommandResult{Disposition: CommandRejected, Message: message}
}
