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

package configs

import (
	"testing"

	"gotest.tools/v3/assert"
)

const layout = `
controller:
  subarrays:
    - id: 1
      fqdn: low-mccs/subarray/01
  stations:
    - id: 1
      fqdn: low-mccs/station/001
      apiu: low-mccs/apiu/001
      tiles:
        - low-mccs/tile/0001
        - low-mccs/tile/0002
      antennas:
        - low-mccs/antenna/000001
      channelBlocks: 48
  stationBeams:
    - id: 1
      fqdn: low-mccs/beam/01
  subarrayBeams:
    - id: 1
      fqdn: low-mccs/subarraybeam/01
  restListenAddress: ":9080"
`

func TestLoadConfig(t *testing.T) {
	conf, err := LoadConfig([]byte(layout))
	assert.NilError(t, err)
	assert.Equal(t, len(conf.Controller.Subarrays), 1)
	assert.Equal(t, conf.Controller.Subarrays[0].FQDN, "low-mccs/subarray/01")
	assert.Equal(t, len(conf.Controller.Stations), 1)
	station := conf.Controller.Stations[0]
	assert.Equal(t, station.APIU, "low-mccs/apiu/001")
	assert.DeepEqual(t, station.Tiles, []string{"low-mccs/tile/0001", "low-mccs/tile/0002"})
	assert.Equal(t, station.ChannelBlocks, 48)
	assert.Equal(t, conf.Controller.RESTListenAddr, ":9080")
}

func TestLoadConfigParseFailure(t *testing.T) {
	_, err := LoadConfig([]byte("controller: [not a mapping"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidateDuplicateFQDN(t *testing.T) {
	conf := &ClusterConfig{
		Controller: ControllerConfig{
			Stations: []StationConfig{
				{ID: 1, FQDN: "low-mccs/station/001", ChannelBlocks: 48},
				{ID: 2, FQDN: "low-mccs/station/001", ChannelBlocks: 48},
			},
		},
	}
	assert.ErrorContains(t, Validate(conf), "duplicate fqdn")
}

func TestValidateEmptyFQDN(t *testing.T) {
	conf := &ClusterConfig{
		Controller: ControllerConfig{
			Stations: []StationConfig{
				{ID: 1, FQDN: "", ChannelBlocks: 48},
			},
		},
	}
	assert.ErrorContains(t, Validate(conf), "empty fqdn")
}

func TestValidateChannelBlocks(t *testing.T) {
	conf := &ClusterConfig{
		Controller: ControllerConfig{
			Stations: []StationConfig{
				{ID: 1, FQDN: "low-mccs/station/001", ChannelBlocks: 0},
			},
		},
	}
	assert.ErrorContains(t, Validate(conf), "positive channel block count")
}

func TestValidateBeamPoolRequired(t *testing.T) {
	conf := &ClusterConfig{
		Controller: ControllerConfig{
			Subarrays: []SubarrayConfig{
				{ID: 1, FQDN: "low-mccs/subarray/01"},
			},
		},
	}
	assert.ErrorContains(t, Validate(conf), "station beam pool is empty")
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	_, err := LoadConfigFromFile("does-not-exist.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}
