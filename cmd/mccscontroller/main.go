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

// mccscontroller runs the control core with in-process device endpoints:
// subarrays and stations are the real component managers, APIUs, tiles,
// antennas and beams are local stand-ins. The wire-level transport to real
// hardware is an external collaborator bound elsewhere.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common/configs"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/controller"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/proxy"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/station"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/subarray"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/task"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/trace"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/webservice"
)

const defaultListenAddr = ":9080"

func main() {
	configPath := flag.String("config", "mccs.yaml", "path to the cluster layout")
	flag.Parse()

	conf, err := configs.LoadConfigFromFile(*configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}

	if !conf.Controller.TracingDisabled {
		closer := trace.InitGlobalTracer("mccs-controller")
		defer closer.Close()
	}

	cm, err := buildController(conf.Controller)
	if err != nil {
		log.Logger().Fatal("failed to build controller", zap.Error(err))
	}
	cm.StartCommunicating()

	addr := conf.Controller.RESTListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	ws := webservice.NewWebService(cm)
	ws.StartWebApp(addr)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalChan
	log.Logger().Info("shutting down", zap.Stringer("signal", sig))
	ws.StopWebApp()
	cm.StopCommunicating()
}

// buildController assembles the whole tree bottom-up: device endpoints feed
// station component managers, stations and subarrays feed the controller.
func buildController(conf configs.ControllerConfig) (*controller.ComponentManager, error) {
	taskLog := logTaskStatus()
	controllerSink := &sinkRef{}

	devices := controller.Devices{
		Subarrays:     make(map[int]proxy.Resourceable, len(conf.Subarrays)),
		Stations:      make(map[common.FQDN]proxy.StationDevice, len(conf.Stations)),
		StationBeams:  make(map[int]proxy.BeamDevice, len(conf.StationBeams)),
		SubarrayBeams: make(map[int]proxy.BeamDevice, len(conf.SubarrayBeams)),
	}

	for _, subConf := range conf.Subarrays {
		subCM := subarray.NewComponentManager(subConf.ID, subConf.FQDN, taskLog, nil)
		devices.Subarrays[subConf.ID] = &localSubarray{
			localDevice: newLocalDevice(subConf.FQDN, controllerSink),
			cm:          subCM,
		}
	}

	for _, stationConf := range conf.Stations {
		stationSink := &sinkRef{}
		apiu := newLocalDevice(stationConf.APIU, stationSink)
		tiles := make(map[common.FQDN]proxy.Device, len(stationConf.Tiles))
		for _, fqdn := range stationConf.Tiles {
			tiles[fqdn] = newLocalDevice(fqdn, stationSink)
		}
		antennas := make(map[common.FQDN]proxy.Device, len(stationConf.Antennas))
		for _, fqdn := range stationConf.Antennas {
			antennas[fqdn] = newLocalDevice(fqdn, stationSink)
		}
		fqdn := stationConf.FQDN
		stationCM := station.NewComponentManager(stationConf, apiu, tiles, antennas, taskLog,
			func(state common.CommunicationState) {
				if sink := controllerSink.get(); sink != nil {
					sink.CommunicationStateChanged(fqdn, state)
				}
			},
			func(state common.PowerState) {
				if sink := controllerSink.get(); sink != nil {
					sink.PowerStateChanged(fqdn, state)
				}
			},
			func(state common.HealthState) {
				if sink := controllerSink.get(); sink != nil {
					sink.HealthStateChanged(fqdn, &state)
				}
			})
		stationSink.bind(stationCM)
		devices.Stations[fqdn] = &localStation{cm: stationCM}
	}

	for _, beamConf := range conf.StationBeams {
		devices.StationBeams[beamConf.ID] = newLocalBeam(beamConf.FQDN, controllerSink)
	}
	for _, beamConf := range conf.SubarrayBeams {
		devices.SubarrayBeams[beamConf.ID] = newLocalBeam(beamConf.FQDN, controllerSink)
	}

	cm, err := controller.NewComponentManager(conf, devices, taskLog, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	controllerSink.bind(cm)
	return cm, nil
}

func logTaskStatus() task.StatusCallback {
	return func(taskID string, name string, state common.TaskState, message string) {
		log.Log(log.Task).Info("task status",
			zap.String("taskID", taskID),
			zap.String("task", name),
			zap.Stringer("state", state),
			zap.String("message", message))
	}
}
