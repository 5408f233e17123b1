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

// Package trace wires the allocate and release protocols into Jaeger.
// Tracing is optional: when no tracer is installed the global opentracing
// noop tracer keeps span calls free.
package trace

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerzap "github.com/uber/jaeger-client-go/log/zap"
	jaegermetrics "github.com/uber/jaeger-lib/metrics"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

// Span tag keys shared by allocate/release spans.
const (
	SubarrayTag = "subarray"
	StationTag  = "station"
	PhaseTag    = "phase"
	ResultTag   = "result"
)

// NewConstTracer returns a Jaeger tracer that samples every trace and logs
// all spans, for tests and development.
func NewConstTracer(serviceName string) (opentracing.Tracer, io.Closer, error) {
	if len(serviceName) == 0 {
		return nil, nil, fmt.Errorf("service name is empty")
	}
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: true,
		},
	}
	return cfg.NewTracer(
		jaegercfg.Logger(jaegerzap.NewLogger(log.Logger().Named(serviceName))),
		jaegercfg.Metrics(jaegermetrics.NullFactory),
	)
}

// NewTracerFromEnv returns a Jaeger tracer configured from the standard
// JAEGER_* environment variables.
func NewTracerFromEnv(serviceName string) (opentracing.Tracer, io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}
	return cfg.NewTracer(
		jaegercfg.Logger(jaegerzap.NewLogger(log.Logger().Named(serviceName))),
		jaegercfg.Metrics(jaegermetrics.NullFactory),
	)
}

// InitGlobalTracer installs a tracer from the environment as the global
// opentracing tracer and returns its closer. Failure to configure leaves the
// noop tracer installed.
func InitGlobalTracer(serviceName string) io.Closer {
	tracer, closer, err := NewTracerFromEnv(serviceName)
	if err != nil {
		log.Logger().Warn("tracing disabled, tracer init failed: " + err.Error())
		return io.NopCloser(nil)
	}
	opentracing.SetGlobalTracer(tracer)
	return closer
}

// StartSpan starts a span on the global tracer.
func StartSpan(operation string) opentracing.Span {
	return opentracing.GlobalTracer().StartSpan(operation)
}
