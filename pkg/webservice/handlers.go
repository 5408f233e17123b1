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

package webservice

import (
	"encoding/json"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/webservice/dao"
)

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Log(log.REST).Error("failed to encode response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func getClusterHealth(ws *WebService, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, dao.ClusterHealthDAOInfo{
		CommunicationState: ws.controller.CommunicationState().String(),
		PowerState:         ws.controller.PowerState().String(),
		HealthState:        ws.controller.Health().String(),
	})
}

func getPools(ws *WebService, w http.ResponseWriter, _ *http.Request) {
	counts := ws.controller.PoolFreeCounts()
	pools := make([]dao.PoolDAOInfo, 0, len(counts))
	for name, free := range counts {
		pools = append(pools, dao.PoolDAOInfo{Pool: name, Free: free})
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Pool < pools[j].Pool })
	writeJSON(w, pools)
}

func getAllocations(ws *WebService, w http.ResponseWriter, _ *http.Request) {
	ids := ws.controller.SubarrayIDs()
	sort.Ints(ids)
	allocations := make([]dao.AllocationDAOInfo, 0, len(ids))
	for _, id := range ids {
		allocations = append(allocations, dao.AllocationDAOInfo{
			SubarrayID: id,
			Holdings:   ws.controller.GetAllocated(id),
		})
	}
	writeJSON(w, allocations)
}

func getStations(ws *WebService, w http.ResponseWriter, _ *http.Request) {
	fqdns := ws.controller.StationFQDNs()
	sort.Strings(fqdns)
	writeJSON(w, dao.StationDAOInfo{FQDNs: fqdns})
}
