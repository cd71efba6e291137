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
	"os"
	"os/signal"
	"sync"
)

// Event is what an external signal means to the supervisor.
type Event int

const (
	EventNone Event = iota
	EventShutdown
	EventReload
)

func (e Event) String() string {
	switch e {
	case EventShutdown:
		return "shutdown"
	case EventReload:
		return "reload"
	}
	return "none"
}

// SignalRouter translates operating system signals into State changes.
// It does nothing else: the handler goroutine only performs the flag write,
// and leaves all real work to the supervisor loop.
type SignalRouter struct {
	st   *State
	sigs chan os.Signal
	done chan struct{}
	once sync.Once
}

// Translate maps a signal to its supervisor event.  Interrupt and
// terminate mean shutdown; hangup (where the platform has one) means
// reload.  Anything else maps to EventNone.
func Translate(sig os.Signal) Event {
	for _, s := range shutdownSignals {
		if s == sig {
			return EventShutdown
		}
	}
	for _, s := range reloadSignals {
		if s == sig {
			return EventReload
		}
	}
	return EventNone
}

// Deliver applies the event for sig to the state.
func (r *SignalRouter) Deliver(sig os.Signal) {
	switch Translate(sig) {
	case EventShutdown:
		r.st.RequestShutdown()
	case EventReload:
		r.st.RequestReload()
	}
}

// Install starts listening for signals.  It should be called once, at
// startup.
func (r *SignalRouter) Install() {
	all := append(append([]os.Signal{}, shutdownSignals...), reloadSignals...)
	signal.Notify(r.sigs, all...)
	go func() {
		for {
			select {
			case sig := <-r.sigs:
				r.Deliver(sig)
			case <-r.done:
				return
			}
		}
	}()
}

// Stop detaches the router from signal delivery.
func (r *SignalRouter) Stop() {
	r.once.Do(func() {
		signal.Stop(r.sigs)
		close(r.done)
	})
}

// NewSignalRouter returns a router that writes to st.
func NewSignalRouter(st *State) *SignalRouter {
	return &SignalRouter{
		st:   st,
		sigs: make(chan os.Signal, 4),
		done: make(chan struct{}),
	}
}
