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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClusterConfig is the static layout of the telescope control tree, loaded
// once at startup. Device proxies are created from these FQDN lists and
// persist for the process lifetime.
type ClusterConfig struct {
	Controller ControllerConfig `yaml:"controller"`
}

type ControllerConfig struct {
	Subarrays       []SubarrayConfig `yaml:"subarrays"`
	Stations        []StationConfig  `yaml:"stations"`
	StationBeams    []BeamConfig     `yaml:"stationBeams"`
	SubarrayBeams   []BeamConfig     `yaml:"subarrayBeams"`
	RESTListenAddr  string           `yaml:"restListenAddress,omitempty"`
	TracingDisabled bool             `yaml:"tracingDisabled,omitempty"`
}

type SubarrayConfig struct {
	ID   int    `yaml:"id"`
	FQDN string `yaml:"fqdn"`
}

type StationConfig struct {
	ID            int      `yaml:"id"`
	FQDN          string   `yaml:"fqdn"`
	APIU          string   `yaml:"apiu"`
	Tiles         []string `yaml:"tiles"`
	Antennas      []string `yaml:"antennas"`
	ChannelBlocks int      `yaml:"channelBlocks"`
}

type BeamConfig struct {
	ID   int    `yaml:"id"`
	FQDN string `yaml:"fqdn"`
}

// LoadConfigFromFile reads and validates a cluster layout.
func LoadConfigFromFile(path string) (*ClusterConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return LoadConfig(buf)
}

// LoadConfig parses and validates a cluster layout from yaml content.
func LoadConfig(content []byte) (*ClusterConfig, error) {
	conf := &ClusterConfig{}
	if err := yaml.Unmarshal(content, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the layout invariants: every fqdn unique across the whole
// tree, every station with a positive channel block count, beam pools not
// empty when subarrays are defined.
func Validate(conf *ClusterConfig) error {
	seen := make(map[string]bool)
	unique := func(fqdn string) error {
		if fqdn == "" {
			return fmt.Errorf("empty fqdn in config")
		}
		if seen[fqdn] {
			return fmt.Errorf("duplicate fqdn in config: %s", fqdn)
		}
		seen[fqdn] = true
		return nil
	}
	for _, sub := range conf.Controller.Subarrays {
		if err := unique(sub.FQDN); err != nil {
			return err
		}
	}
	for _, station := range conf.Controller.Stations {
		if err := unique(station.FQDN); err != nil {
			return err
		}
		if station.APIU != "" {
			if err := unique(station.APIU); err != nil {
				return err
			}
		}
		for _, fqdn := range station.Tiles {
			if err := unique(fqdn); err != nil {
				return err
			}
		}
		for _, fqdn := range station.Antennas {
			if err := unique(fqdn); err != nil {
				return err
			}
		}
		if station.ChannelBlocks <= 0 {
			return fmt.Errorf("station %s must have a positive channel block count, got %d", station.FQDN, station.ChannelBlocks)
		}
	}
	for _, beam := range conf.Controller.StationBeams {
		if err := unique(beam.FQDN); err != nil {
			return err
		}
	}
	for _, beam := range conf.Controller.SubarrayBeams {
		if err := unique(beam.FQDN); err != nil {
			return err
		}
	}
	if len(conf.Controller.Subarrays) > 0 && len(conf.Controller.StationBeams) == 0 {
		return fmt.Errorf("subarrays defined but station beam pool is empty")
	}
	return nil
}
