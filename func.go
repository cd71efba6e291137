// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package warden

import (
	"context"
	"log"
	"sync"
)

// funcWorker runs a function in its own goroutine.  It is alive until the
// function returns.  Stop cancels the context passed to the function.
type funcWorker struct {
	fn     func(context.Context) error
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *log.Logger
	err    error
	lock   sync.Mutex
}

func (f *funcWorker) SetLogger(l *log.Logger) {
	f.logger = l
}

func (f *funcWorker) Start() error {
	f.ctx, f.cancel = context.WithCancel(context.Background())
	go func() {
		defer close(f.done)
		err := protect(func() error { return f.fn(f.ctx) })
		f.lock.Lock()
		f.err = err
		f.lock.Unlock()
		if err != nil && f.logger != nil && f.ctx.Err() == nil {
			f.logger.Printf("Exited: %v", err)
		}
	}()
	return nil
}

func (f *funcWorker) Alive() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

func (f *funcWorker) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	return nil
}

func (f *funcWorker) Join() {
	<-f.done
}

// Err returns the error the function returned, if it has returned.  A
// panic is reported as an error.
func (f *funcWorker) Err() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.err
}

// NewFuncType returns a WorkerType whose workers run fn in a goroutine.
// The function should return promptly once its context is cancelled.
func NewFuncType(name string, fn func(context.Context) error) WorkerType {
	return NewWorkerType(name, func() (Worker, error) {
		return &funcWorker{fn: fn, done: make(chan struct{})}, nil
	})
}
