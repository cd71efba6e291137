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
	"log"
	"time"

	"github.com/google/uuid"
)

// Worker is what every supervised unit must implement.  The supervisor
// promises not to call these methods concurrently for a single worker,
// except for Alive, which may be called from other goroutines (for example
// the REST handlers) and so must be safe for concurrent use.
type Worker interface {
	// Start begins the unit's work.  It is called exactly once per
	// worker instance.  If it returns an error, the instance is
	// discarded, and a fresh one will be constructed on a later tick.
	Start() error

	// Alive reports whether the unit is still running.  It must not
	// block.
	Alive() bool
}

// Stopper is the optional capability that permits a worker to be drained
// at shutdown.  Workers that do not implement it are left running (and a
// warning is logged) when the supervisor shuts down.
type Stopper interface {
	// Stop requests graceful termination.  It should not block for long;
	// the actual waiting is done in Join.
	Stop() error

	// Join blocks until the unit has fully terminated after Stop.
	Join()
}

// LoggerSetter may be implemented by workers that want to log through
// the supervisor.  The logger is supplied before Start is called, and
// carries a prefix naming the worker type.
type LoggerSetter interface {
	SetLogger(*log.Logger)
}

// ExitReporter may be implemented by workers that can say why they
// stopped running.  Err is only consulted once Alive has returned false.
type ExitReporter interface {
	Err() error
}

// WorkerType describes a kind of worker, of which the supervisor keeps
// exactly one live instance.  The name must be unique within a Registry.
type WorkerType interface {
	Name() string

	// New constructs a fresh, unstarted worker.
	New() (Worker, error)
}

type workerType struct {
	name string
	fn   func() (Worker, error)
}

func (t *workerType) Name() string {
	return t.name
}

func (t *workerType) New() (Worker, error) {
	return t.fn()
}

// NewWorkerType returns a WorkerType using the given constructor.
func NewWorkerType(name string, fn func() (Worker, error)) WorkerType {
	return &workerType{name: name, fn: fn}
}

// handle tracks one running instance.  The id is stable for the lifetime
// of the instance; a restart always produces a new handle.
type handle struct {
	id      uuid.UUID
	wt      WorkerType
	w       Worker
	started time.Time
}

func newHandle(wt WorkerType, w Worker) *handle {
	return &handle{
		id:      uuid.New(),
		wt:      wt,
		w:       w,
		started: time.Now(),
	}
}

func (h *handle) alive() bool {
	return h.w.Alive()
}
