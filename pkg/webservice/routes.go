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
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type handlerFunc func(ws *WebService, w http.ResponseWriter, r *http.Request)

type route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc handlerFunc
}

var routes = []route{
	{
		"Health",
		"GET",
		"/ws/v1/health",
		getClusterHealth,
	},
	{
		"Pools",
		"GET",
		"/ws/v1/pools",
		getPools,
	},
	{
		"Allocations",
		"GET",
		"/ws/v1/allocations",
		getAllocations,
	},
	{
		"Stations",
		"GET",
		"/ws/v1/stations",
		getStations,
	},
	{
		"Metrics",
		"GET",
		"/ws/v1/metrics",
		func(_ *WebService, w http.ResponseWriter, r *http.Request) {
			promhttp.Handler().ServeHTTP(w, r)
		},
	},
}
