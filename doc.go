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

// Package warden provides a small process level worker supervisor.
//
// A Supervisor keeps exactly one live instance of every WorkerType in its
// Registry.  On each tick of its control loop it looks for types whose
// worker is missing or no longer Alive, and starts a fresh one.  When the
// process is asked to terminate, the supervisor stops its workers one at a
// time, in the order their types were registered, waiting for each to
// finish.  Workers that implement Stopper can be stopped; the rest are
// reported and left alone.  A reload request re-reads the configuration
// without disturbing the running workers.
//
// Signals are not handled directly by the loop.  A SignalRouter turns them
// into flags on a State, and the loop acts on those flags at its next tick.
// The same flags may be set by other means, such as the REST interface in
// the rest package.
//
// Two ready made worker types are supplied: NewCommandType runs an
// operating system command, and NewFuncType runs a Go function.
package warden
