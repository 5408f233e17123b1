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

// Package controller is the top level composition: it owns proxies to every
// subarray, station and beam, leases channel blocks and beam slots to
// observing sessions, and runs the two phase allocate/assign and release
// protocols with full unwind on failure.
package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/aggregator"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common/configs"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/health"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/metrics"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/pool"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/task"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/trace"
)

// Resource kinds used in the resource manager. Channel blocks are kinded per
// station so one station's block numbers never collide with another's.
const (
	KindSubarrayBeams = "subarray-beams"
	KindStationBeams  = "station-beams"
	kindChannelPrefix = "channel-blocks:"
)

// Sub-component kinds tracked by the controller health model.
const (
	KindSubarray = "subarray"
	KindStation  = "station"
	KindBeam     = "beam"
)

func channelKind(station common.FQDN) string {
	return kindChannelPrefix + station
}

// AllocationRequest describes one allocate call: the subarray that receives
// the resources, the station id groups (one group per subarray beam), the
// subarray beam ids, and the channel block count to lease per group. This
// schema is the externally visible contract of the controller.
type AllocationRequest struct {
	SubarrayID            int     `json:"subarrayID"`
	StationGroups         [][]int `json:"stationGroups"`
	SubarrayBeamIDs       []int   `json:"subarrayBeamIDs"`
	ChannelBlocksPerGroup []int   `json:"channelBlocksPerGroup"`
}

// Devices is the set of proxies the controller owns, created once from the
// static configuration and persisting for the process lifetime.
type Devices struct {
	// subarray id -> proxy
	Subarrays map[int]proxy.Resourceable
	// station fqdn -> proxy
	Stations map[common.FQDN]proxy.StationDevice
	// beam token -> proxy
	StationBeams  map[int]proxy.BeamDevice
	SubarrayBeams map[int]proxy.BeamDevice
}

// ComponentManager runs the allocate/release protocols. A single lock
// serializes them: they are rare, low latency admin operations, not a hot
// path. Event callbacks stay outside that lock, on the per-aggregate locks.
type ComponentManager struct {
	devices    Devices
	stationIDs map[int]common.FQDN
	beamFQDNs  map[common.FQDN]bool

	// channel block pool per station, plus the global beam pools
	channelBlocks map[common.FQDN]*pool.Pool
	stationBeams  *pool.Pool
	manager       *pool.Manager

	commAgg     *aggregator.CommunicationAggregator
	powerAgg    *aggregator.PowerAggregator
	healthModel *health.Model
	runner      *task.Runner

	locking.Mutex
}

// NewComponentManager builds the controller from the cluster layout and the
// device proxies. Pool universes are fixed here and mutated only by
// allocate/release.
func NewComponentManager(
	conf configs.ControllerConfig,
	devices Devices,
	taskCallback task.StatusCallback,
	commCallback func(common.CommunicationState),
	powerCallback func(common.PowerState),
	healthCallback func(common.HealthState),
) (*ComponentManager, error) {
	cm := &ComponentManager{
		devices:       devices,
		stationIDs:    make(map[int]common.FQDN, len(conf.Stations)),
		beamFQDNs:     make(map[common.FQDN]bool),
		channelBlocks: make(map[common.FQDN]*pool.Pool, len(conf.Stations)),
		manager:       pool.NewManager("controller"),
	}

	subarrayFQDNs := make([]common.FQDN, 0, len(conf.Subarrays))
	for _, sub := range conf.Subarrays {
		subarrayFQDNs = append(subarrayFQDNs, sub.FQDN)
	}
	stationFQDNs := make([]common.FQDN, 0, len(conf.Stations))
	for _, station := range conf.Stations {
		cm.stationIDs[station.ID] = station.FQDN
		stationFQDNs = append(stationFQDNs, station.FQDN)
		blocks := make([]int, station.ChannelBlocks)
		for i := range blocks {
			blocks[i] = i + 1
		}
		p, err := pool.NewPool(channelKind(station.FQDN), blocks)
		if err != nil {
			return nil, err
		}
		cm.channelBlocks[station.FQDN] = p
	}

	beamTokens := make([]int, 0, len(conf.StationBeams))
	beamFQDNs := make([]common.FQDN, 0, len(conf.StationBeams)+len(conf.SubarrayBeams))
	for _, beam := range conf.StationBeams {
		beamTokens = append(beamTokens, beam.ID)
		beamFQDNs = append(beamFQDNs, beam.FQDN)
		cm.beamFQDNs[beam.FQDN] = true
		cm.manager.RegisterResource(KindStationBeams, beam.ID, beam.FQDN)
	}
	for _, beam := range conf.SubarrayBeams {
		beamFQDNs = append(beamFQDNs, beam.FQDN)
		cm.beamFQDNs[beam.FQDN] = true
		cm.manager.RegisterResource(KindSubarrayBeams, beam.ID, beam.FQDN)
	}
	stationBeams, err := pool.NewPool("station-beams", beamTokens)
	if err != nil {
		return nil, err
	}
	cm.stationBeams = stationBeams

	children := make([]common.FQDN, 0, len(subarrayFQDNs)+len(stationFQDNs)+len(beamFQDNs))
	children = append(children, subarrayFQDNs...)
	children = append(children, stationFQDNs...)
	children = append(children, beamFQDNs...)
	cm.commAgg = aggregator.NewCommunicationAggregator("controller", children, commCallback)
	cm.powerAgg = aggregator.NewPowerAggregator("controller", children, powerCallback)
	cm.healthModel = health.NewModel("controller", map[string][]common.FQDN{
		KindSubarray: subarrayFQDNs,
		KindStation:  stationFQDNs,
		KindBeam:     beamFQDNs,
	}, func(state common.HealthState) {
		metrics.GetHealthMetrics().SetHealth("controller", state)
		if healthCallback != nil {
			healthCallback(state)
		}
	})
	cm.runner = task.NewRunner("controller", taskCallback)
	cm.publishPoolMetrics()
	return cm, nil
}

// Allocate leases channel blocks and beam slots to a subarray and pushes the
// result downstream. Long-running: the synchronous result is the queue
// verdict, the outcome arrives through the task callback.
func (cm *ComponentManager) Allocate(request AllocationRequest) common.CommandResult {
	_, result := cm.runner.Submit("allocate", func(ctx context.Context) error {
		span := trace.StartSpan("allocate")
		span.SetTag(trace.SubarrayTag, request.SubarrayID)
		defer span.Finish()
		err := cm.allocate(ctx, request)
		if err != nil {
			span.SetTag(trace.ResultTag, err.Error())
		}
		return err
	})
	return result
}

// Release returns every resource held by a subarray. Long-running.
func (cm *ComponentManager) Release(subarrayID int) common.CommandResult {
	_, result := cm.runner.Submit("release", func(ctx context.Context) error {
		span := trace.StartSpan("release")
		span.SetTag(trace.SubarrayTag, subarrayID)
		defer span.Finish()
		return cm.release(subarrayID)
	})
	return result
}

func consumerName(subarrayID int) string {
	return fmt.Sprintf("subarray-%d", subarrayID)
}

// allocate is the protocol proper.
//
// Failure up to and including the commit unwinds every lease taken by this
// call before the error surfaces, leaving all pool free counts and any
// existing allocation of the subarray unchanged. Failure after the commit
// unwinds through release, so the subarray ends unresourced but no token is
// ever stranded outside a pool.
func (cm *ComponentManager) allocate(ctx context.Context, request AllocationRequest) error {
	cm.Lock()
	defer cm.Unlock()

	// step 1: validate, fail fast, no mutation
	if cm.powerAgg.Aggregate() != common.PowerOn {
		return fmt.Errorf("cannot allocate: %w", common.ErrNotOn)
	}
	subarrayProxy, ok := cm.devices.Subarrays[request.SubarrayID]
	if !ok {
		return fmt.Errorf("%w: subarray %d", common.ErrConfiguration, request.SubarrayID)
	}
	if len(request.StationGroups) != len(request.ChannelBlocksPerGroup) {
		return fmt.Errorf("%w: %d station groups but %d channel block counts",
			common.ErrConfiguration, len(request.StationGroups), len(request.ChannelBlocksPerGroup))
	}
	for _, beamID := range request.SubarrayBeamIDs {
		if _, managed := cm.devices.SubarrayBeams[beamID]; !managed {
			return fmt.Errorf("%w: subarray beam %d", common.ErrConfiguration, beamID)
		}
	}
	stations := make(map[common.FQDN]bool)
	groups := make([][]common.FQDN, len(request.StationGroups))
	for i, group := range request.StationGroups {
		groups[i] = make([]common.FQDN, len(group))
		for j, stationID := range group {
			fqdn, managed := cm.stationIDs[stationID]
			if !managed {
				return fmt.Errorf("%w: station %d", common.ErrConfiguration, stationID)
			}
			groups[i][j] = fqdn
			stations[fqdn] = true
		}
	}

	// step 2: lease channel blocks per station group
	leasedBlocks := make(map[common.FQDN][]int)
	leasedBeams := []int(nil)
	unwind := func() {
		for fqdn, blocks := range leasedBlocks {
			cm.channelBlocks[fqdn].Release(blocks...)
		}
		cm.stationBeams.Release(leasedBeams...)
		cm.publishPoolMetrics()
	}
	for i, group := range groups {
		count := request.ChannelBlocksPerGroup[i]
		for _, fqdn := range group {
			if err := ctx.Err(); err != nil {
				unwind()
				return err
			}
			for n := 0; n < count; n++ {
				block, err := cm.channelBlocks[fqdn].Lease()
				if err != nil {
					unwind()
					metrics.GetControllerMetrics().ObserveAllocate(metrics.AllocateExhausted)
					return fmt.Errorf("station %s cannot supply %d channel blocks: %w",
						fqdn, count, common.ErrResourceExhausted)
				}
				leasedBlocks[fqdn] = append(leasedBlocks[fqdn], block)
			}
		}
	}

	// step 3: lease one station beam per subarray beam and station pair
	requiredStationBeams := len(request.SubarrayBeamIDs) * len(stations)
	for n := 0; n < requiredStationBeams; n++ {
		beam, err := cm.stationBeams.Lease()
		if err != nil {
			unwind()
			metrics.GetControllerMetrics().ObserveAllocate(metrics.AllocateExhausted)
			return fmt.Errorf("station beam pool cannot supply %d beams: %w",
				requiredStationBeams, common.ErrResourceExhausted)
		}
		leasedBeams = append(leasedBeams, beam)
	}

	// step 4: commit the bindings atomically, a repeat allocate for the same
	// subarray replaces its previous holdings wholesale
	holdings := map[string][]int{
		KindSubarrayBeams: request.SubarrayBeamIDs,
		KindStationBeams:  leasedBeams,
	}
	for fqdn, blocks := range leasedBlocks {
		holdings[channelKind(fqdn)] = blocks
	}
	consumer := consumerName(request.SubarrayID)
	replaced, err := cm.manager.Allocate(consumer, holdings)
	if err != nil {
		metrics.GetControllerMetrics().ObserveAllocate(metrics.AllocateConflict)
		// nothing was committed, only this call's leases need unwinding
		unwind()
		return err
	}

	// step 5: hand the holdings displaced by a replacement back to the pools
	cm.returnReplaced(request.SubarrayID, replaced, leasedBlocks)

	// step 6: push configuration downstream
	if err := cm.pushAssignment(request.SubarrayID, subarrayProxy, leasedBlocks, leasedBeams, request.SubarrayBeamIDs); err != nil {
		cm.unwindViaRelease(request.SubarrayID)
		metrics.GetControllerMetrics().ObserveAllocate(metrics.AllocateRejected)
		return err
	}

	// step 7: write derived identifiers back to the beam proxies
	cm.writeBeamIdentities(request.SubarrayID, groups, leasedBeams, request.SubarrayBeamIDs)
	cm.publishPoolMetrics()
	metrics.GetControllerMetrics().ObserveAllocate(metrics.AllocateSucceeded)
	log.Log(log.Controller).Info("allocation committed",
		zap.Int("subarray", request.SubarrayID),
		zap.Any("channelBlocks", leasedBlocks),
		zap.Ints("stationBeams", leasedBeams))
	return nil
}

// returnReplaced hands the holdings displaced by a repeat allocate back to
// their pools. Displaced beams are reset first so a free token never keeps a
// stale identity; a station that lost every block to the replacement is told
// to drop its lease.
func (cm *ComponentManager) returnReplaced(subarrayID int, replaced map[string][]int, kept map[common.FQDN][]int) {
	if len(replaced) == 0 {
		return
	}
	for _, beam := range replaced[KindStationBeams] {
		if beamProxy, ok := cm.devices.StationBeams[beam]; ok {
			beamProxy.ClearBeamIdentity()
		}
	}
	for _, beam := range replaced[KindSubarrayBeams] {
		if beamProxy, ok := cm.devices.SubarrayBeams[beam]; ok {
			beamProxy.ClearBeamIdentity()
		}
	}
	cm.stationBeams.Release(replaced[KindStationBeams]...)
	for fqdn, p := range cm.channelBlocks {
		blocks := replaced[channelKind(fqdn)]
		if len(blocks) == 0 {
			continue
		}
		p.Release(blocks...)
		if len(kept[fqdn]) == 0 {
			cm.devices.Stations[fqdn].ReleaseChannelBlocks(subarrayID)
		}
	}
}

// pushAssignment tells the stations which blocks they lost and the subarray
// what it now owns. A downstream refusal fails the whole allocate.
func (cm *ComponentManager) pushAssignment(subarrayID int, subarrayProxy proxy.Resourceable, leasedBlocks map[common.FQDN][]int, leasedBeams []int, subarrayBeamIDs []int) error {
	for fqdn, blocks := range leasedBlocks {
		if result := cm.devices.Stations[fqdn].AssignChannelBlocks(subarrayID, blocks); result.Disposition == common.CommandFailed {
			return fmt.Errorf("station %s: %w: %s", fqdn, common.ErrDownstreamRejected, result.Message)
		}
	}
	resources := proxy.ResourceSet{
		SubarrayBeamIDs: subarrayBeamIDs,
		StationBeamIDs:  leasedBeams,
		ChannelBlocks:   leasedBlocks,
	}
	if result := subarrayProxy.AssignResources(resources); result.Disposition != common.CommandOK && result.Disposition != common.CommandQueued {
		return fmt.Errorf("subarray %d: %w: %s", subarrayID, common.ErrDownstreamRejected, result.Message)
	}
	return nil
}

// writeBeamIdentities pairs the leased station beams up with the stations of
// each group, in order, and writes subarray/station identity to each beam
// proxy. Failures here are logged, not surfaced: the allocation is already
// committed and a release resets the beams regardless.
func (cm *ComponentManager) writeBeamIdentities(subarrayID int, groups [][]common.FQDN, leasedBeams []int, subarrayBeamIDs []int) {
	next := 0
	for range subarrayBeamIDs {
		for _, group := range groups {
			for _, fqdn := range group {
				if next >= len(leasedBeams) {
					return
				}
				beamProxy, ok := cm.devices.StationBeams[leasedBeams[next]]
				next++
				if !ok {
					continue
				}
				stationID := cm.stationIDFor(fqdn)
				if result := beamProxy.SetBeamIdentity(subarrayID, stationID, fqdn); result.Disposition == common.CommandFailed {
					log.Log(log.Controller).Warn("station beam refused identity write",
						zap.Int("beam", leasedBeams[next-1]),
						zap.String("station", fqdn))
				}
			}
		}
	}
	for _, beamID := range subarrayBeamIDs {
		beamProxy, ok := cm.devices.SubarrayBeams[beamID]
		if !ok {
			continue
		}
		if result := beamProxy.SetBeamIdentity(subarrayID, 0, ""); result.Disposition == common.CommandFailed {
			log.Log(log.Controller).Warn("subarray beam refused identity write",
				zap.Int("beam", beamID))
		}
	}
}

func (cm *ComponentManager) stationIDFor(fqdn common.FQDN) int {
	for id, f := range cm.stationIDs {
		if f == fqdn {
			return id
		}
	}
	return 0
}

// unwindViaRelease is the post-commit unwind: release is idempotent and safe
// on partial state, so it is the one recovery path for every late failure.
func (cm *ComponentManager) unwindViaRelease(subarrayID int) {
	if err := cm.releaseLocked(subarrayID); err != nil {
		log.Log(log.Controller).Error("unwind failed",
			zap.Int("subarray", subarrayID),
			zap.Error(err))
	}
}

func (cm *ComponentManager) release(subarrayID int) error {
	cm.Lock()
	defer cm.Unlock()
	return cm.releaseLocked(subarrayID)
}

// releaseLocked returns every resource held by the subarray. Holdings are
// read from the resource manager first; downstream devices are reset before
// the tokens become leasable again. Releasing an unresourced subarray is a
// fast no-op.
func (cm *ComponentManager) releaseLocked(subarrayID int) error {
	consumer := consumerName(subarrayID)
	holdings := cm.manager.GetAllocated(consumer)
	if len(holdings) == 0 {
		return nil
	}

	// reset the downstream beams to neutral values
	for _, beam := range holdings[KindStationBeams] {
		if beamProxy, ok := cm.devices.StationBeams[beam]; ok {
			beamProxy.ClearBeamIdentity()
		}
	}
	for _, beam := range holdings[KindSubarrayBeams] {
		if beamProxy, ok := cm.devices.SubarrayBeams[beam]; ok {
			beamProxy.ClearBeamIdentity()
		}
	}

	// drop the bindings, then hand the tokens back to their pools
	holdings = cm.manager.DeallocateFrom(consumer)
	cm.stationBeams.Release(holdings[KindStationBeams]...)
	for fqdn, p := range cm.channelBlocks {
		if blocks := holdings[channelKind(fqdn)]; len(blocks) > 0 {
			p.Release(blocks...)
		}
	}

	// tell every managed station to drop blocks leased to this subarray
	for _, stationProxy := range cm.devices.Stations {
		stationProxy.ReleaseChannelBlocks(subarrayID)
	}
	// and tell the subarray it no longer owns anything
	if subarrayProxy, ok := cm.devices.Subarrays[subarrayID]; ok {
		subarrayProxy.ReleaseAllResources()
	}
	cm.publishPoolMetrics()
	metrics.GetControllerMetrics().ObserveRelease()
	log.Log(log.Controller).Info("allocation released",
		zap.Int("subarray", subarrayID))
	return nil
}

func (cm *ComponentManager) publishPoolMetrics() {
	pm := metrics.GetPoolMetrics()
	for _, p := range cm.channelBlocks {
		pm.SetFree(p.Name(), p.FreeCount())
	}
	pm.SetFree(cm.stationBeams.Name(), cm.stationBeams.FreeCount())
}
