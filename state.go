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
	"sync/atomic"
)

// State holds the two flags that outside events (signals, REST requests)
// may set.  Setting a flag is a single atomic store; all of the work
// resulting from it happens later, in the supervisor loop.
//
// The dying flag is monotonic: once set it is never cleared.  The reload
// flag is cleared only by the supervisor, after it has reloaded.
type State struct {
	dying  atomic.Bool
	reload atomic.Bool
	wake   chan struct{}
}

// NewState returns a fresh State.
func NewState() *State {
	return &State{wake: make(chan struct{}, 1)}
}

// RequestShutdown marks the supervisor as dying.
func (st *State) RequestShutdown() {
	st.dying.Store(true)
	st.poke()
}

// RequestReload asks for the configuration to be reloaded on the next tick.
func (st *State) RequestReload() {
	st.reload.Store(true)
	st.poke()
}

func (st *State) Dying() bool {
	return st.dying.Load()
}

func (st *State) ReloadPending() bool {
	return st.reload.Load()
}

// takeReload clears a pending reload, reporting whether one was pending.
func (st *State) takeReload() bool {
	return st.reload.CompareAndSwap(true, false)
}

// poke nudges a sleeping loop so that it observes the new state without
// waiting for a full tick.  It never blocks.
func (st *State) poke() {
	if st.wake == nil {
		return
	}
	select {
	case st.wake <- struct{}{}:
	default:
	}
}

func (st *State) wakeup() <-chan struct{} {
	return st.wake
}
