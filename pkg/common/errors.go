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

package common

import "errors"

var (
	// ErrConfiguration returned when a request references an entity this
	// component does not manage. Fails fast, no mutation, no retry.
	ErrConfiguration = errors.New("configuration error: unmanaged entity referenced")
	// ErrResourceExhausted returned when a pool has no free token left.
	// May follow partial mutation; the controller unwinds before surfacing it.
	ErrResourceExhausted = errors.New("resource exhausted: no free token")
	// ErrAlreadyAllocated returned when a token is owned by a different consumer.
	ErrAlreadyAllocated = errors.New("token already allocated to another consumer")
	// ErrDownstreamRejected returned when a remote device refused a command.
	// Never auto-retried; triggers unwind inside allocate.
	ErrDownstreamRejected = errors.New("downstream device rejected command")
	// ErrNotCommunicating returned when an operation is attempted before
	// communication with the component is established.
	ErrNotCommunicating = errors.New("communication with component is not established")
	// ErrNotOn returned when an operation requires the component to be on.
	ErrNotOn = errors.New("component is not turned on")
	// ErrHealthCheck returned when allocation is refused for a consumer or
	// resource that is gated out by readiness or health flags.
	ErrHealthCheck = errors.New("does not pass health check")
)
