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

package pool

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

// Manager binds consumers (subarrays) to tokens drawn from pools.
// Invariant: a token belongs to at most one consumer at a time, per kind.
// The manager does not talk to the pools: deallocation and replacement
// remove and return the displaced holdings so the caller can reset
// downstream devices before handing the tokens back, a deliberate two-step
// protocol.
type Manager struct {
	name string
	// consumer -> kind -> tokens
	allocations map[string]map[string][]int
	// kind -> token -> fqdn of the backing device, for health gating
	fqdns map[string]map[int]common.FQDN
	// kind -> fqdn -> healthy
	unhealthy map[string]map[common.FQDN]bool
	// consumer -> explicitly set readiness; a consumer never set is ready
	notReady map[string]bool

	locking.Mutex
}

func NewManager(name string) *Manager {
	return &Manager{
		name:        name,
		allocations: make(map[string]map[string][]int),
		fqdns:       make(map[string]map[int]common.FQDN),
		unhealthy:   make(map[string]map[common.FQDN]bool),
		notReady:    make(map[string]bool),
	}
}

// RegisterResource records the device backing a token so health gating can be
// applied per fqdn. Registration is optional: unregistered tokens are not
// health gated.
func (m *Manager) RegisterResource(kind string, token int, fqdn common.FQDN) {
	m.Lock()
	defer m.Unlock()
	if m.fqdns[kind] == nil {
		m.fqdns[kind] = make(map[int]common.FQDN)
	}
	m.fqdns[kind][token] = fqdn
}

// SetReady gates allocation for a consumer. An allocation for a not-ready
// consumer is refused with a health check failure.
func (m *Manager) SetReady(consumer string, ready bool) {
	m.Lock()
	defer m.Unlock()
	if ready {
		delete(m.notReady, consumer)
	} else {
		m.notReady[consumer] = true
	}
}

// SetHealth gates allocation of the tokens backed by the given device.
func (m *Manager) SetHealth(kind string, fqdn common.FQDN, healthy bool) {
	m.Lock()
	defer m.Unlock()
	if healthy {
		delete(m.unhealthy[kind], fqdn)
		return
	}
	if m.unhealthy[kind] == nil {
		m.unhealthy[kind] = make(map[common.FQDN]bool)
	}
	m.unhealthy[kind][fqdn] = true
}

// Allocate binds tokens of several kinds to a consumer in one atomic step:
// either the whole binding is recorded or nothing changes. The new holdings
// replace the consumer's previous holdings wholesale; the displaced holdings
// are returned so the caller can reset downstream devices and hand the
// tokens back to their pools, the same two-step protocol as DeallocateFrom.
// Fails with ErrAlreadyAllocated if any token is owned by a different
// consumer and with ErrHealthCheck if the consumer or any token is gated out.
func (m *Manager) Allocate(consumer string, holdings map[string][]int) (map[string][]int, error) {
	m.Lock()
	defer m.Unlock()

	if m.notReady[consumer] {
		return nil, fmt.Errorf("consumer %s %w", consumer, common.ErrHealthCheck)
	}
	// validate everything before mutating anything
	for kind, tokens := range holdings {
		for _, token := range tokens {
			if owner, ok := m.ownerOf(kind, token); ok && owner != consumer {
				return nil, fmt.Errorf("%w: %s token %d is held by %s", common.ErrAlreadyAllocated, kind, token, owner)
			}
			if fqdn, ok := m.fqdns[kind][token]; ok && m.unhealthy[kind][fqdn] {
				return nil, fmt.Errorf("%s resource %s %w", kind, fqdn, common.ErrHealthCheck)
			}
		}
	}
	replaced := m.allocations[consumer]
	m.allocations[consumer] = copyHoldings(holdings)
	log.Log(log.Pool).Info("resources allocated",
		zap.String("manager", m.name),
		zap.String("consumer", consumer),
		zap.Any("holdings", holdings))
	return replaced, nil
}

// GetAllocated returns a copy of the consumer's current holdings.
func (m *Manager) GetAllocated(consumer string) map[string][]int {
	m.Lock()
	defer m.Unlock()
	return copyHoldings(m.allocations[consumer])
}

// DeallocateFrom removes and returns all holdings of a consumer. The caller
// is responsible for returning the tokens to their pools once downstream
// devices have been reset. Deallocating an unknown consumer returns nil.
func (m *Manager) DeallocateFrom(consumer string) map[string][]int {
	m.Lock()
	defer m.Unlock()
	holdings := m.allocations[consumer]
	delete(m.allocations, consumer)
	return copyHoldings(holdings)
}

// ownerOf returns the consumer currently holding the token of a kind.
// Callers must hold the manager lock.
func (m *Manager) ownerOf(kind string, token int) (string, bool) {
	for consumer, kinds := range m.allocations {
		for _, held := range kinds[kind] {
			if held == token {
				return consumer, true
			}
		}
	}
	return "", false
}

func copyHoldings(holdings map[string][]int) map[string][]int {
	if holdings == nil {
		return nil
	}
	clone := make(map[string][]int, len(holdings))
	for kind, tokens := range holdings {
		clone[kind] = append([]int(nil), tokens...)
	}
	return clone
}
