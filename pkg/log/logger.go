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

package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerHandle identifies a named logger for one subsystem of the control
// core. Handles are fixed at startup; loggers are created lazily per handle.
type LoggerHandle struct {
	id   int
	name string
}

func (h *LoggerHandle) String() string {
	return h.name
}

var (
	Core        = &LoggerHandle{id: 0, name: "core"}
	Controller  = &LoggerHandle{id: 1, name: "core.controller"}
	Station     = &LoggerHandle{id: 2, name: "core.station"}
	Subarray    = &LoggerHandle{id: 3, name: "core.subarray"}
	Pool        = &LoggerHandle{id: 4, name: "core.pool"}
	Health      = &LoggerHandle{id: 5, name: "core.health"}
	Aggregator  = &LoggerHandle{id: 6, name: "core.aggregator"}
	ObsState    = &LoggerHandle{id: 7, name: "core.obsstate"}
	Task        = &LoggerHandle{id: 8, name: "core.task"}
	REST        = &LoggerHandle{id: 9, name: "core.rest"}
	Config      = &LoggerHandle{id: 10, name: "core.config"}
	Diagnostics = &LoggerHandle{id: 11, name: "core.diagnostics"}
)

const handleCount = 12

var once sync.Once
var logger *zap.Logger
var config *zap.Config
var loggers []*zap.Logger

// Logger returns the root logger, initializing it on first use. If a global
// zap logger was installed by the embedding process it is reused, otherwise a
// console logger writing to stderr is created.
func Logger() *zap.Logger {
	once.Do(initLogging)
	return logger
}

// Log returns the named logger for the given handle.
func Log(handle *LoggerHandle) *zap.Logger {
	once.Do(initLogging)
	if handle == nil {
		return logger
	}
	return loggers[handle.id]
}

func initLogging() {
	config = createConfig()
	var err error
	logger, err = config.Build()
	// this should really not happen so just write to stdout and set a Nop logger
	if err != nil {
		fmt.Printf("Logging disabled, logger init failed with error: %v\n", err)
		logger = zap.NewNop()
	}
	loggers = make([]*zap.Logger, handleCount)
	for _, handle := range []*LoggerHandle{Core, Controller, Station, Subarray, Pool, Health, Aggregator, ObsState, Task, REST, Config, Diagnostics} {
		loggers[handle.id] = logger.Named(handle.name)
	}
}

func IsDebugEnabled() bool {
	if logger == nil {
		// when under development mode
		return true
	}
	return logger.Core().Enabled(zapcore.DebugLevel)
}

// Visible by tests
func InitAndSetLevel(level zapcore.Level) {
	if config == nil {
		Logger()
	}
	config.Level.SetLevel(level)
}

// Create a log config to keep full control over
// LogLevel set to DEBUG, Encodes for console, Writes to stderr,
// Enables development mode (DPanicLevel),
// Print stack traces for messages at WarnLevel and above
func createConfig() *zap.Config {
	return &zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.DebugLevel),
		Development: true,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			LevelKey:      "level",
			TimeKey:       "time",
			NameKey:       "name",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			LineEnding:    zapcore.DefaultLineEnding,
			// note: https://godoc.org/go.uber.org/zap/zapcore#EncoderConfig
			// only EncodeName is optional all others must be set
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}
