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

// Package station is the mid-level composition: one APIU proxy plus the tile
// and antenna proxies it powers. Turning a station on is eventually
// consistent: antennas draw power from the APIU, so the cascade down to
// tiles and antennas must wait until the APIU reports ON.
package station

import (
	"context"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/aggregator"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common/configs"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/health"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/metrics"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/obsstate"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/task"
)

// Sub-component kinds tracked by the station health model.
const (
	KindAPIU    = "apiu"
	KindTile    = "tile"
	KindAntenna = "antenna"
)

// Cascade trigger labels for metrics.
const (
	CascadeImmediate = "immediate"
	CascadeDeferred  = "deferred"
)

// ComponentManager owns the device proxies of one station and rolls their
// states up. It implements proxy.EventSink; proxies call it from their own
// threads.
type ComponentManager struct {
	fqdn common.FQDN
	id   int

	apiu     proxy.Device
	tiles    map[common.FQDN]proxy.Device
	antennas map[common.FQDN]proxy.Device
	kinds    map[common.FQDN]string

	commAgg     *aggregator.CommunicationAggregator
	powerAgg    *aggregator.PowerAggregator
	healthModel *health.Model
	obsModel    *obsstate.StationModel
	runner      *task.Runner

	// channel blocks the controller has leased from this station, by
	// subarray id; drives the resourced fact of the obs model
	leases map[int][]int

	// onRequested is the sticky deferred-intent flag of the on-cascade: set
	// when on() finds the APIU not yet ON, cleared by the power callback
	// that performs the deferred cascade or by a later off/standby request.
	// Guarded by the mutex so at most one cascade happens per logical on.
	onRequested bool

	locking.Mutex
}

// NewComponentManager builds the station composition from its static device
// layout. Proxies persist for the process lifetime.
func NewComponentManager(
	conf configs.StationConfig,
	apiu proxy.Device,
	tiles map[common.FQDN]proxy.Device,
	antennas map[common.FQDN]proxy.Device,
	taskCallback task.StatusCallback,
	commCallback func(common.CommunicationState),
	powerCallback func(common.PowerState),
	healthCallback func(common.HealthState),
) *ComponentManager {
	cm := &ComponentManager{
		fqdn:     conf.FQDN,
		id:       conf.ID,
		apiu:     apiu,
		tiles:    tiles,
		antennas: antennas,
		kinds:    make(map[common.FQDN]string, 1+len(tiles)+len(antennas)),
		leases:   make(map[int][]int),
	}
	fqdns := []common.FQDN{apiu.FQDN()}
	cm.kinds[apiu.FQDN()] = KindAPIU
	tileFQDNs := make([]common.FQDN, 0, len(tiles))
	for fqdn := range tiles {
		cm.kinds[fqdn] = KindTile
		fqdns = append(fqdns, fqdn)
		tileFQDNs = append(tileFQDNs, fqdn)
	}
	antennaFQDNs := make([]common.FQDN, 0, len(antennas))
	for fqdn := range antennas {
		cm.kinds[fqdn] = KindAntenna
		fqdns = append(fqdns, fqdn)
		antennaFQDNs = append(antennaFQDNs, fqdn)
	}
	cm.commAgg = aggregator.NewCommunicationAggregator(conf.FQDN, fqdns, commCallback)
	cm.powerAgg = aggregator.NewPowerAggregator(conf.FQDN, fqdns, powerCallback)
	cm.healthModel = health.NewModel(conf.FQDN, map[string][]common.FQDN{
		KindAPIU:    {apiu.FQDN()},
		KindTile:    tileFQDNs,
		KindAntenna: antennaFQDNs,
	}, func(state common.HealthState) {
		metrics.GetHealthMetrics().SetHealth(conf.FQDN, state)
		if healthCallback != nil {
			healthCallback(state)
		}
	})
	cm.obsModel = obsstate.NewStationModel(conf.FQDN, nil)
	cm.runner = task.NewRunner(conf.FQDN, taskCallback)
	return cm
}

func (cm *ComponentManager) FQDN() common.FQDN {
	return cm.fqdn
}

func (cm *ComponentManager) ID() int {
	return cm.id
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

// On turns the station on. If the APIU is already ON the cascade to tiles
// and antennas runs immediately; otherwise only the APIU is commanded and
// the cascade is deferred to the power callback that sees the APIU reach ON.
// Long-running: returns QUEUED, terminal state via the task callback.
func (cm *ComponentManager) On() common.CommandResult {
	_, result := cm.runner.Submit("on", func(ctx context.Context) error {
		return cm.on()
	})
	return result
}

// on sets the sticky flag before sampling the APIU power state, so the flag
// is consumed exactly once whether the cascade runs here or in a concurrent
// power callback.
func (cm *ComponentManager) on() error {
	cm.Lock()
	cm.onRequested = true
	cm.Unlock()

	apiuState, _ := cm.powerAgg.ChildState(cm.apiu.FQDN())
	if apiuState == common.PowerOn {
		cm.Lock()
		cascade := cm.onRequested
		cm.onRequested = false
		cm.Unlock()
		if !cascade {
			// a concurrent power callback got there first
			return nil
		}
		metrics.GetControllerMetrics().ObserveCascade(CascadeImmediate)
		return cm.turnOnTilesAndAntennas()
	}
	log.Log(log.Station).Info("cascade deferred until APIU reports ON",
		zap.String("station", cm.fqdn),
		zap.Stringer("apiuPower", apiuState))
	if result := cm.apiu.On(); result.Disposition == common.CommandFailed {
		return common.ErrDownstreamRejected
	}
	return nil
}

// Off turns everything off. The APIU cuts power to the antennas, so no
// ordering constraint applies; every unit gets the command directly.
func (cm *ComponentManager) Off() common.CommandResult {
	_, result := cm.runner.Submit("off", func(ctx context.Context) error {
		cm.cancelPendingCascade()
		failed := false
		cm.forEachDevice(func(device proxy.Device) {
			if r := device.Off(); r.Disposition == common.CommandFailed {
				failed = true
			}
		})
		if failed {
			return common.ErrDownstreamRejected
		}
		return nil
	})
	return result
}

// Standby puts the APIU on standby; tiles and antennas lose power with it.
func (cm *ComponentManager) Standby() common.CommandResult {
	_, result := cm.runner.Submit("standby", func(ctx context.Context) error {
		cm.cancelPendingCascade()
		if r := cm.apiu.Standby(); r.Disposition == common.CommandFailed {
			return common.ErrDownstreamRejected
		}
		return nil
	})
	return result
}

// cancelPendingCascade consumes stale on intent: an off or standby request
// supersedes an on still waiting for the APIU, so a late ON report must not
// cascade.
func (cm *ComponentManager) cancelPendingCascade() {
	cm.Lock()
	cm.onRequested = false
	cm.Unlock()
}

// turnOnTilesAndAntennas cascades the on command: tiles first, antennas
// second. A group already fully ON is skipped, a unit already ON is skipped,
// so repeating the cascade is idempotent. Returns ErrDownstreamRejected if
// any command failed.
func (cm *ComponentManager) turnOnTilesAndAntennas() error {
	failed := false
	for _, group := range []map[common.FQDN]proxy.Device{cm.tiles, cm.antennas} {
		allOn := true
		for fqdn := range group {
			if state, _ := cm.powerAgg.ChildState(fqdn); state != common.PowerOn {
				allOn = false
				break
			}
		}
		if allOn {
			continue
		}
		for fqdn, device := range group {
			if state, _ := cm.powerAgg.ChildState(fqdn); state == common.PowerOn {
				continue
			}
			if result := device.On(); result.Disposition == common.CommandFailed {
				log.Log(log.Station).Error("device refused on command",
					zap.String("station", cm.fqdn),
					zap.String("fqdn", fqdn))
				failed = true
			}
		}
	}
	if failed {
		return common.ErrDownstreamRejected
	}
	return nil
}

// CommunicationStateChanged implements proxy.EventSink.
func (cm *ComponentManager) CommunicationStateChanged(fqdn common.FQDN, state common.CommunicationState) {
	cm.commAgg.ChildChanged(fqdn, state)
	cm.healthModel.SetCommunicating(cm.commAgg.Aggregate() == common.CommunicationEstablished)
}

// PowerStateChanged implements proxy.EventSink. The APIU reaching ON while
// an on request is pending performs the deferred cascade; the flag is
// cleared in the same critical section that decides to cascade, so repeated
// ON reports cannot fire the cascade twice.
func (cm *ComponentManager) PowerStateChanged(fqdn common.FQDN, state common.PowerState) {
	cm.powerAgg.ChildChanged(fqdn, state)
	if fqdn != cm.apiu.FQDN() || state != common.PowerOn {
		return
	}
	cm.Lock()
	cascade := cm.onRequested
	cm.onRequested = false
	cm.Unlock()
	if !cascade {
		return
	}
	metrics.GetControllerMetrics().ObserveCascade(CascadeDeferred)
	log.Log(log.Station).Info("APIU is ON, performing deferred cascade",
		zap.String("station", cm.fqdn))
	if err := cm.turnOnTilesAndAntennas(); err != nil {
		log.Log(log.Station).Error("deferred cascade failed",
			zap.String("station", cm.fqdn),
			zap.Error(err))
	}
}

// HealthStateChanged implements proxy.EventSink.
func (cm *ComponentManager) HealthStateChanged(fqdn common.FQDN, state *common.HealthState) {
	kind, ok := cm.kinds[fqdn]
	if !ok {
		log.Log(log.Station).Warn("health update for unmanaged device discarded",
			zap.String("station", cm.fqdn),
			zap.String("fqdn", fqdn))
		return
	}
	cm.healthModel.ChildHealthChanged(kind, fqdn, state)
}

// AssignChannelBlocks records blocks the controller leased from this station
// for a subarray. Records replace, matching the upsert semantics upstream.
func (cm *ComponentManager) AssignChannelBlocks(subarrayID int, blocks []int) common.CommandResult {
	cm.Lock()
	if len(blocks) == 0 {
		delete(cm.leases, subarrayID)
	} else {
		cm.leases[subarrayID] = append([]int(nil), blocks...)
	}
	resourced := len(cm.leases) > 0
	cm.Unlock()
	cm.obsModel.SetResourced(resourced)
	return common.OKResult()
}

// ReleaseChannelBlocks drops the blocks leased to a subarray. Releasing for
// a subarray with no lease is a no-op.
func (cm *ComponentManager) ReleaseChannelBlocks(subarrayID int) common.CommandResult {
	return cm.AssignChannelBlocks(subarrayID, nil)
}

// SetConfigured records the configured fact for the obs model.
func (cm *ComponentManager) SetConfigured(configured bool) {
	cm.obsModel.SetConfigured(configured)
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

// ObsState returns the derived observation state.
func (cm *ComponentManager) ObsState() common.ObsState {
	return cm.obsModel.State()
}

func (cm *ComponentManager) forEachDevice(fn func(device proxy.Device)) {
	fn(cm.apiu)
	for _, device := range cm.tiles {
		fn(device)
	}
	for _, device := range cm.antennas {
		fn(device)
	}
}
