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
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

// CommunicationStateChanged implements proxy.EventSink.
func (cm *ComponentManager) CommunicationStateChanged(fqdn common.FQDN, state common.CommunicationState) {
	cm.commAgg.ChildChanged(fqdn, state)
	cm.healthModel.SetCommunicating(cm.commAgg.Aggregate() == common.CommunicationEstablished)
}

// PowerStateChanged implements proxy.EventSink.
func (cm *ComponentManager) PowerStateChanged(fqdn common.FQDN, state common.PowerState) {
	cm.powerAgg.ChildChanged(fqdn, state)
}

// HealthStateChanged implements proxy.EventSink. A beam reporting FAILED is
// additionally gated out of future allocations until it recovers.
func (cm *ComponentManager) HealthStateChanged(fqdn common.FQDN, state *common.HealthState) {
	kind, ok := cm.kindFor(fqdn)
	if !ok {
		log.Log(log.Controller).Warn("health update for unmanaged device discarded",
			zap.String("fqdn", fqdn))
		return
	}
	cm.healthModel.ChildHealthChanged(kind, fqdn, state)
	if kind != KindBeam {
		return
	}
	healthy := state == nil || *state != common.HealthFailed
	cm.manager.SetHealth(KindStationBeams, fqdn, healthy)
	cm.manager.SetHealth(KindSubarrayBeams, fqdn, healthy)
}

// SetSubarrayReady gates allocation for a subarray, for operator use.
func (cm *ComponentManager) SetSubarrayReady(subarrayID int, ready bool) {
	cm.manager.SetReady(consumerName(subarrayID), ready)
}

func (cm *ComponentManager) kindFor(fqdn common.FQDN) (string, bool) {
	if cm.beamFQDNs[fqdn] {
		return KindBeam, true
	}
	if _, ok := cm.devices.Stations[fqdn]; ok {
		return KindStation, true
	}
	for _, subarrayProxy := range cm.devices.Subarrays {
		if subarrayProxy.FQDN() == fqdn {
			return KindSubarray, true
		}
	}
	return "", false
}

// CommunicationState returns the rolled up communication state.
func (cm *ComponentManager) CommunicationState() common.CommunicationState {
	return cm.commAgg.Aggregate()
}

// PowerState returns the rolled up power state.
func (cm *ComponentManager) PowerState() common.PowerState {
	return cm.powerAgg.Aggregate()
}

// Health returns the rolled up health state.
func (cm *ComponentManager) Health() common.HealthState {
	return cm.healthModel.Health()
}

// GetAllocated returns the holdings of a subarray, for the monitoring views.
func (cm *ComponentManager) GetAllocated(subarrayID int) map[string][]int {
	return cm.manager.GetAllocated(consumerName(subarrayID))
}

// PoolFreeCounts returns free token counts per pool, for the monitoring
// views. Channel block pools are keyed by station fqdn.
func (cm *ComponentManager) PoolFreeCounts() map[string]int {
	counts := make(map[string]int, len(cm.channelBlocks)+1)
	for fqdn, p := range cm.channelBlocks {
		counts[fqdn] = p.FreeCount()
	}
	counts[cm.stationBeams.Name()] = cm.stationBeams.FreeCount()
	return counts
}

// SubarrayIDs returns the ids of the managed subarrays.
func (cm *ComponentManager) SubarrayIDs() []int {
	ids := make([]int, 0, len(cm.devices.Subarrays))
	for id := range cm.devices.Subarrays {
		ids = append(ids, id)
	}
	return ids
}

// StationFQDNs returns the fqdns of the managed stations.
func (cm *ComponentManager) StationFQDNs() []common.FQDN {
	fqdns := make([]common.FQDN, 0, len(cm.devices.Stations))
	for fqdn := range cm.devices.Stations {
		fqdns = append(fqdns, fqdn)
	}
	return fqdns
}
