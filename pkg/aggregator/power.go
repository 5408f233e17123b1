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

package aggregator

import (
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
)

// PowerAggregator tracks the power state of a fixed set of children.
// Composite value is the first of UNKNOWN, OFF, STANDBY, ON present among
// them, UNKNOWN being the worst.
type PowerAggregator struct {
	name      string
	children  map[common.FQDN]common.PowerState
	aggregate common.PowerState
	callback  func(common.PowerState)

	locking.Mutex
}

// NewPowerAggregator tracks the given children, all starting at UNKNOWN.
func NewPowerAggregator(name string, fqdns []common.FQDN, callback func(common.PowerState)) *PowerAggregator {
	a := &PowerAggregator{
		name:     name,
		children: make(map[common.FQDN]common.PowerState, len(fqdns)),
		callback: callback,
	}
	for _, fqdn := range fqdns {
		a.children[fqdn] = common.PowerUnknown
	}
	a.aggregate = a.recompute()
	return a
}

// ChildChanged updates one child and recomputes the aggregate, firing the
// callback exactly once when the composite value changes.
func (a *PowerAggregator) ChildChanged(fqdn common.FQDN, state common.PowerState) {
	a.Lock()
	defer a.Unlock()
	if _, tracked := a.children[fqdn]; !tracked {
		unknownChildLog.Warn("power update for untracked device discarded",
			zap.String("component", a.name),
			zap.String("fqdn", fqdn),
			zap.Stringer("state", state))
		return
	}
	a.children[fqdn] = state
	newAggregate := a.recompute()
	if newAggregate == a.aggregate {
		return
	}
	a.aggregate = newAggregate
	if a.callback != nil {
		a.callback(newAggregate)
	}
}

// Aggregate returns the current composite power state.
func (a *PowerAggregator) Aggregate() common.PowerState {
	a.Lock()
	defer a.Unlock()
	return a.aggregate
}

// ChildState returns the last reported power state of one child.
func (a *PowerAggregator) ChildState(fqdn common.FQDN) (common.PowerState, bool) {
	a.Lock()
	defer a.Unlock()
	state, ok := a.children[fqdn]
	return state, ok
}

func (a *PowerAggregator) recompute() common.PowerState {
	states := make([]common.PowerState, 0, len(a.children))
	for _, state := range a.children {
		states = append(states, state)
	}
	return common.WorstPowerState(states)
}
