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

// Package task runs long-running commands off the caller's thread. A submit
// returns immediately with a queued or rejected verdict; progress is
// reported through a status callback as IN_PROGRESS followed by exactly one
// terminal state. Callers must not block on command completion.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/metrics"
)

// StatusCallback reports task progress. Called from the task's goroutine.
type StatusCallback func(taskID string, name string, state common.TaskState, message string)

// Handle identifies one submitted task and allows aborting it.
type Handle struct {
	ID     string
	Name   string
	cancel context.CancelFunc
}

// Abort signals the task to stop. The task observes the signal between steps
// and reports ABORTED; the abort itself does not wait.
func (h *Handle) Abort() {
	h.cancel()
}

// Runner executes submitted functions, one goroutine each.
type Runner struct {
	name     string
	callback StatusCallback
	wg       sync.WaitGroup
	running  map[string]*Handle
	draining bool

	locking.Mutex
}

func NewRunner(name string, callback StatusCallback) *Runner {
	return &Runner{
		name:     name,
		callback: callback,
		running:  make(map[string]*Handle),
	}
}

// Submit queues fn for execution and returns immediately. The function must
// honor ctx cancellation between steps; returning ctx.Err() reports ABORTED,
// any other error FAILED, nil COMPLETED.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) (*Handle, common.CommandResult) {
	r.Lock()
	if r.draining {
		r.Unlock()
		return nil, common.RejectedResult("runner is shutting down")
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle := &Handle{
		ID:     uuid.NewString(),
		Name:   name,
		cancel: cancel,
	}
	r.running[handle.ID] = handle
	r.wg.Add(1)
	r.Unlock()

	go r.run(ctx, handle, fn)
	return handle, common.QueuedResult(handle.ID)
}

func (r *Runner) run(ctx context.Context, handle *Handle, fn func(ctx context.Context) error) {
	defer r.wg.Done()
	defer handle.cancel()

	start := time.Now()
	r.report(handle, common.TaskInProgress, "")
	err := fn(ctx)

	r.Lock()
	delete(r.running, handle.ID)
	r.Unlock()

	switch {
	case err == nil:
		r.report(handle, common.TaskCompleted, "")
	case errors.Is(err, context.Canceled):
		r.report(handle, common.TaskAborted, "")
	default:
		log.Log(log.Task).Error("task failed",
			zap.String("runner", r.name),
			zap.String("task", handle.Name),
			zap.String("taskID", handle.ID),
			zap.Error(err))
		r.report(handle, common.TaskFailed, err.Error())
	}
	metrics.GetTaskMetrics().ObserveTask(handle.Name, time.Since(start))
}

func (r *Runner) report(handle *Handle, state common.TaskState, message string) {
	if r.callback != nil {
		r.callback(handle.ID, handle.Name, state, message)
	}
}

// AbortAll signals every running task to stop.
func (r *Runner) AbortAll() {
	r.Lock()
	defer r.Unlock()
	for _, handle := range r.running {
		handle.cancel()
	}
}

// Drain rejects new submissions and waits for running tasks to finish.
func (r *Runner) Drain() {
	r.Lock()
	r.draining = true
	r.Unlock()
	r.wg.Wait()
}
