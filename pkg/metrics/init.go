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

import "sync"

// ControlSubsystem - subsystem name used by all control core metrics
const ControlSubsystem = "mccs_control"

var once sync.Once
var m *Metrics

type Metrics struct {
	controller *ControllerMetrics
	pools      *PoolMetrics
	health     *HealthMetrics
	tasks      *TaskMetrics
}

func initMetrics() {
	m = &Metrics{
		controller: initControllerMetrics(),
		pools:      initPoolMetrics(),
		health:     initHealthMetrics(),
		tasks:      initTaskMetrics(),
	}
}

func GetControllerMetrics() *ControllerMetrics {
	once.Do(initMetrics)
	return m.controller
}

func GetPoolMetrics() *PoolMetrics {
	once.Do(initMetrics)
	return m.pools
}

func GetHealthMetrics() *HealthMetrics {
	once.Do(initMetrics)
	return m.health
}

func GetTaskMetrics() *TaskMetrics {
	once.Do(initMetrics)
	return m.tasks
}
