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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
)

// Allocation attempt results used as metric label values.
const (
	AllocateSucceeded = "allocated"
	AllocateExhausted = "exhausted"
	AllocateConflict  = "conflict"
	AllocateRejected  = "rejected"
	AllocateError     = "error"
)

type ControllerMetrics struct {
	allocations *prometheus.CounterVec
	releases    prometheus.Counter
	cascades    *prometheus.CounterVec
}

func initControllerMetrics() *ControllerMetrics {
	cm := &ControllerMetrics{}
	cm.allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: ControlSubsystem,
			Name:      "allocate_attempts_total",
			Help:      "Number of subarray allocation attempts, by result.",
		}, []string{"result"})
	cm.releases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: ControlSubsystem,
			Name:      "releases_total",
			Help:      "Number of subarray resource releases.",
		})
	cm.cascades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: ControlSubsystem,
			Name:      "station_on_cascades_total",
			Help:      "Number of station power-on cascades, by trigger (immediate or deferred).",
		}, []string{"trigger"})
	prometheus.MustRegister(cm.allocations, cm.releases, cm.cascades)
	return cm
}

func (cm *ControllerMetrics) ObserveAllocate(result string) {
	cm.allocations.With(prometheus.Labels{"result": result}).Inc()
}

func (cm *ControllerMetrics) ObserveRelease() {
	cm.releases.Inc()
}

func (cm *ControllerMetrics) ObserveCascade(trigger string) {
	cm.cascades.With(prometheus.Labels{"trigger": trigger}).Inc()
}

type PoolMetrics struct {
	freeTokens *prometheus.GaugeVec
}

func initPoolMetrics() *PoolMetrics {
	pm := &PoolMetrics{}
	pm.freeTokens = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: ControlSubsystem,
			Name:      "pool_free_tokens",
			Help:      "Number of free tokens per resource pool.",
		}, []string{"pool"})
	prometheus.MustRegister(pm.freeTokens)
	return pm
}

func (pm *PoolMetrics) SetFree(pool string, free int) {
	pm.freeTokens.With(prometheus.Labels{"pool": pool}).Set(float64(free))
}

type HealthMetrics struct {
	health *prometheus.GaugeVec
}

func initHealthMetrics() *HealthMetrics {
	hm := &HealthMetrics{}
	hm.health = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: ControlSubsystem,
			Name:      "component_health",
			Help:      "Rolled up health per component: 0 OK, 1 DEGRADED, 2 FAILED, 3 UNKNOWN.",
		}, []string{"component"})
	prometheus.MustRegister(hm.health)
	return hm
}

func (hm *HealthMetrics) SetHealth(component string, state common.HealthState) {
	hm.health.With(prometheus.Labels{"component": component}).Set(float64(state))
}

type TaskMetrics struct {
	durations *prometheus.HistogramVec
}

func initTaskMetrics() *TaskMetrics {
	tm := &TaskMetrics{}
	tm.durations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: ControlSubsystem,
			Name:      "task_duration_seconds",
			Help:      "Duration of long-running commands, by command name.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 10, 7),
		}, []string{"task"})
	prometheus.MustRegister(tm.durations)
	return tm
}

func (tm *TaskMetrics) ObserveTask(name string, duration time.Duration) {
	tm.durations.With(prometheus.Labels{"task": name}).Observe(duration.Seconds())
}
