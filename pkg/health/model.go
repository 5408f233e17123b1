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

// Package health rolls named sub-component health states up into one
// severity ordered value. A sub-component may report no opinion (nil) and is
// then skipped by the rollup.
package health

import (
	"time"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

var untrackedLog = log.RateLimitedLog(log.Health, time.Second)

// Model tracks the component's own health sources (fault flag, communication
// state) plus per-kind maps of sub-component health, and rolls them up with
// precedence FAILED > UNKNOWN > DEGRADED > OK.
type Model struct {
	name          string
	faulty        bool
	communicating bool
	// kind -> fqdn -> reported health, nil when the device has no opinion
	tracked   map[string]map[common.FQDN]*common.HealthState
	aggregate common.HealthState
	callback  func(common.HealthState)
	// extraSeverity lets variants add severity sources, e.g. an unlocked
	// beam forcing DEGRADED. Checked per severity during evaluation.
	extraSeverity func(common.HealthState) bool

	locking.Mutex
}

// NewModel creates a health model tracking the given kinds of
// sub-components. All tracked devices start with no opinion; the model
// starts not communicating, so its initial health is UNKNOWN.
func NewModel(name string, tracked map[string][]common.FQDN, callback func(common.HealthState)) *Model {
	m := &Model{
		name:     name,
		tracked:  make(map[string]map[common.FQDN]*common.HealthState, len(tracked)),
		callback: callback,
	}
	for kind, fqdns := range tracked {
		m.tracked[kind] = make(map[common.FQDN]*common.HealthState, len(fqdns))
		for _, fqdn := range fqdns {
			m.tracked[kind][fqdn] = nil
		}
	}
	m.aggregate = m.evaluateHealth()
	return m
}

// SetFault records the component's own fault flag and re-evaluates.
func (m *Model) SetFault(faulty bool) {
	m.Lock()
	defer m.Unlock()
	m.faulty = faulty
	m.updateHealth()
}

// SetCommunicating records whether communication with the component is
// established and re-evaluates.
func (m *Model) SetCommunicating(communicating bool) {
	m.Lock()
	defer m.Unlock()
	m.communicating = communicating
	m.updateHealth()
}

// ChildHealthChanged records the health reported by one sub-component, nil
// meaning no opinion. An update for an fqdn not tracked under the kind is
// logged and discarded, never raised.
func (m *Model) ChildHealthChanged(kind string, fqdn common.FQDN, state *common.HealthState) {
	m.Lock()
	defer m.Unlock()
	kindMap, ok := m.tracked[kind]
	if !ok {
		untrackedLog.Warn("health update for untracked kind discarded",
			zap.String("component", m.name),
			zap.String("kind", kind),
			zap.String("fqdn", fqdn))
		return
	}
	if _, ok = kindMap[fqdn]; !ok {
		untrackedLog.Warn("health update for untracked device discarded",
			zap.String("component", m.name),
			zap.String("kind", kind),
			zap.String("fqdn", fqdn))
		return
	}
	kindMap[fqdn] = state
	m.updateHealth()
}

// Health returns the current rolled up health state.
func (m *Model) Health() common.HealthState {
	m.Lock()
	defer m.Unlock()
	return m.aggregate
}

// updateHealth recomputes the aggregate and fires the callback only on
// change. Callers must hold the model lock.
func (m *Model) updateHealth() {
	newHealth := m.evaluateHealth()
	if newHealth == m.aggregate {
		return
	}
	log.Log(log.Health).Info("health changed",
		zap.String("component", m.name),
		zap.Stringer("from", m.aggregate),
		zap.Stringer("to", newHealth))
	m.aggregate = newHealth
	if m.callback != nil {
		m.callback(newHealth)
	}
}

// evaluateHealth scans the severities in order and returns the first one
// found among the own health and the tracked opinions, otherwise OK.
// Callers must hold the model lock.
func (m *Model) evaluateHealth() common.HealthState {
	own := m.ownHealth()
	for _, severity := range common.HealthSeverityOrder {
		if own == severity {
			return severity
		}
		if m.extraSeverity != nil && m.extraSeverity(severity) {
			return severity
		}
		for _, kindMap := range m.tracked {
			for _, state := range kindMap {
				if state != nil && *state == severity {
					return severity
				}
			}
		}
	}
	return common.HealthOK
}

func (m *Model) ownHealth() common.HealthState {
	if !m.communicating {
		return common.HealthUnknown
	}
	if m.faulty {
		return common.HealthFailed
	}
	return common.HealthOK
}
