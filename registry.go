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
	"fmt"
	"sync"
)

// Registry is the ordered set of worker types a Supervisor keeps alive.
// Types may only be added before the registry is sealed, which happens
// when the supervisor starts running.  Registration order is the order
// used for both starting and draining workers.
type Registry struct {
	types  []WorkerType
	names  map[string]bool
	sealed bool
	mx     sync.Mutex
}

// Register adds a worker type.  It fails with ErrDuplicateType if a type
// with the same name was already registered, and with ErrRegistrySealed
// once supervision has begun.
func (r *Registry) Register(wt WorkerType) error {
	if wt == nil || wt.Name() == "" {
		return ErrBadWorkerType
	}
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if r.names == nil {
		r.names = make(map[string]bool)
	}
	if r.names[wt.Name()] {
		return fmt.Errorf("%w: %s", ErrDuplicateType, wt.Name())
	}
	r.names[wt.Name()] = true
	r.types = append(r.types, wt)
	return nil
}

// MustRegister is like Register, but panics on failure.  This is meant
// for static setup code, where a duplicate is a programming error.
func (r *Registry) MustRegister(types ...WorkerType) {
	for _, wt := range types {
		if e := r.Register(wt); e != nil {
			panic(e)
		}
	}
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []WorkerType {
	r.mx.Lock()
	rv := append([]WorkerType{}, r.types...)
	r.mx.Unlock()
	return rv
}

// Lookup finds a registered type by name.
func (r *Registry) Lookup(name string) (WorkerType, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	for _, wt := range r.types {
		if wt.Name() == name {
			return wt, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.types)
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mx.Lock()
	r.sealed = true
	r.mx.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.sealed
}

// NewRegistry returns a registry holding the given types, in order.
func NewRegistry(types ...WorkerType) (*Registry, error) {
	r := &Registry{}
	for _, wt := range types {
		if e := r.Register(wt); e != nil {
			return nil, e
		}
	}
	return r, nil
}
