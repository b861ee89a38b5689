// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/livekit/protocol/logger"
)

// OpsQueue runs queued functions one at a time, in order, on its own goroutine.
// Enqueue never blocks the caller, so it is safe to call from engine callbacks.
type OpsQueue struct {
	logger logger.Logger
	name   string

	lock      sync.Mutex
	ops       deque.Deque[func()]
	wake      chan struct{}
	isStarted bool
	isStopped bool
	done      chan struct{}
}

func NewOpsQueue(logger logger.Logger, name string) *OpsQueue {
	return &OpsQueue{
		logger: logger,
		name:   name,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (oq *OpsQueue) Start() {
	oq.lock.Lock()
	if oq.isStarted || oq.isStopped {
		oq.lock.Unlock()
		return
	}
	oq.isStarted = true
	oq.lock.Unlock()

	go oq.process()
}

// Stop discards pending ops. An op already running is allowed to finish.
func (oq *OpsQueue) Stop() {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}
	oq.isStopped = true
	pending := oq.ops.Len()
	oq.ops.Clear()
	started := oq.isStarted
	close(oq.wake)
	oq.lock.Unlock()

	if pending > 0 {
		oq.logger.Debugw("ops queue stopped with pending ops", "name", oq.name, "pending", pending)
	}
	if !started {
		close(oq.done)
	}
}

// Done is closed once the processing goroutine has exited.
func (oq *OpsQueue) Done() <-chan struct{} {
	return oq.done
}

func (oq *OpsQueue) Enqueue(op func()) {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}
	oq.ops.PushBack(op)
	select {
	case oq.wake <- struct{}{}:
	default:
	}
	oq.lock.Unlock()
}

func (oq *OpsQueue) process() {
	defer close(oq.done)

	for range oq.wake {
		for {
			oq.lock.Lock()
			if oq.isStopped || oq.ops.Len() == 0 {
				oq.lock.Unlock()
				break
			}
			op := oq.ops.PopFront()
			oq.lock.Unlock()

			oq.run(op)
		}
	}
}

func (oq *OpsQueue) run(op func()) {
	defer func() {
		if r := recover(); r != nil {
			oq.logger.Errorw("ops queue op panicked", nil, "name", oq.name, "panic", r)
		}
	}()
	op()
}
