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

// Package webservice exposes read-only monitoring views of the control
// core. It is an operator surface, not a device transport: commands to
// devices never travel through it.
package webservice

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/controller"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

type WebService struct {
	httpServer *http.Server
	controller *controller.ComponentManager
}

func NewWebService(cm *controller.ComponentManager) *WebService {
	return &WebService{controller: cm}
}

func (ws *WebService) newRouter() *httprouter.Router {
	router := httprouter.New()
	for _, webRoute := range routes {
		handler := ws.loggingHandler(webRoute.HandlerFunc, webRoute.Name)
		router.Handler(webRoute.Method, webRoute.Pattern, handler)
	}
	return router
}

func (ws *WebService) loggingHandler(inner handlerFunc, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner(ws, w, r)
		log.Log(log.REST).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.String("name", name),
			zap.Duration("duration", time.Since(start)))
	})
}

// StartWebApp serves the monitoring views on the given address until
// StopWebApp is called.
func (ws *WebService) StartWebApp(addr string) {
	router := ws.newRouter()
	ws.httpServer = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: time.Second}

	log.Log(log.REST).Info("web app started", zap.String("address", addr))
	go func() {
		err := ws.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Log(log.REST).Error("web app failed", zap.Error(err))
		}
	}()
}

// StopWebApp shuts the server down, waiting up to five seconds for in-flight
// requests.
func (ws *WebService) StopWebApp() {
	if ws.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ws.httpServer.Shutdown(ctx); err != nil {
			log.Log(log.REST).Error("web app shutdown failed", zap.Error(err))
		}
		ws.httpServer = nil
	}
}
