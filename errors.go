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
	"errors"
	"fmt"
)

var (
	ErrDuplicateType  = errors.New("Duplicate worker type")
	ErrRegistrySealed = errors.New("Registry is sealed")
	ErrBadWorkerType  = errors.New("Bad worker type")
	ErrWorkerStart    = errors.New("Worker failed to start")
	ErrMissingStop    = errors.New("Worker is missing stop capability")
	ErrStopTimeout    = errors.New("Timed out waiting for worker to stop")
	ErrRateLimited    = errors.New("Restarting too quickly")
	ErrNotRunning     = errors.New("Worker is not running")
	ErrNoSuchWorker   = errors.New("No such worker type")
	ErrAlreadyRunning = errors.New("Supervisor already running")
)

// WorkerStartError is reported when a worker type could not be constructed
// or started during a tend pass.  It matches ErrWorkerStart with errors.Is.
type WorkerStartError struct {
	Type string
	Err  error
}

func (e *WorkerStartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Type, e.Err)
}

func (e *WorkerStartError) Unwrap() error {
	return e.Err
}

func (e *WorkerStartError) Is(target error) bool {
	return target == ErrWorkerStart
}

// ConfigLoadError is returned by Reload when the configuration source
// exists but could not be parsed.  The previous configuration is retained.
type ConfigLoadError struct {
	Err error
}

func (e *ConfigLoadError) Error() string {
	return "config load: " + e.Err.Error()
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}
