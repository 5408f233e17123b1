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

package dao

// ClusterHealthDAOInfo is the rolled up view of the whole control tree.
type ClusterHealthDAOInfo struct {
	CommunicationState string `json:"communicationState"`
	PowerState         string `json:"powerState"`
	HealthState        string `json:"healthState"`
}

// PoolDAOInfo is the free token count of one resource pool.
type PoolDAOInfo struct {
	Pool string `json:"pool"`
	Free int    `json:"free"`
}

// AllocationDAOInfo is the holdings of one subarray, by resource kind.
type AllocationDAOInfo struct {
	SubarrayID int              `json:"subarrayID"`
	Holdings   map[string][]int `json:"holdings,omitempty"`
}

// StationDAOInfo is the list of managed stations.
type StationDAOInfo struct {
	FQDNs []string `json:"fqdns"`
}
