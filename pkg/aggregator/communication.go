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

// Package aggregator rolls child device states up into one composite value.
// Device proxies deliver change notifications on independent threads; each
// aggregator serializes them under its own lock so concurrent updates get a
// total order and the change callback never fires twice for one transition.
package aggregator

import (
	"time"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

var unknownChildLog = log.RateLimitedLog(log.Aggregator, time.Second)

// CommunicationAggregator tracks the communication state of a fixed set of
// children and reports the worst state present among them.
type CommunicationAggregator struct {
	name      string
	children  map[common.FQDN]common.CommunicationState
	aggregate common.CommunicationState
	callback  func(common.CommunicationState)

	locking.Mutex
}

// NewCommunicationAggregator tracks the given children, all starting at
// DISABLED. The callback fires on every aggregate change, under the
// aggregator lock.
func NewCommunicationAggregator(name string, fqdns []common.FQDN, callback func(common.CommunicationState)) *CommunicationAggregator {
	a := &CommunicationAggregator{
		name:     name,
		children: make(map[common.FQDN]common.CommunicationState, len(fqdns)),
		callback: callback,
	}
	for _, fqdn := range fqdns {
		a.children[fqdn] = common.CommunicationDisabled
	}
	a.aggregate = a.recompute()
	return a
}

// ChildChanged updates one child and recomputes the aggregate. An update for
// an fqdn no longer tracked is logged and discarded, never raised.
func (a *CommunicationAggregator) ChildChanged(fqdn common.FQDN, state common.CommunicationState) {
	a.Lock()
	defer a.Unlock()
	if _, tracked := a.children[fqdn]; !tracked {
		unknownChildLog.Warn("communication update for untracked device discarded",
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

// Aggregate returns the current composite communication state.
func (a *CommunicationAggregator) Aggregate() common.CommunicationState {
	a.Lock()
	defer a.Unlock()
	return a.aggregate
}

func (a *CommunicationAggregator) recompute() common.CommunicationState {
	states := make([]common.CommunicationState, 0, len(a.children))
	for _, state := range a.children {
		states = append(states, state)
	}
	return common.WorstCommunicationState(states)
}
