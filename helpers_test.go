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
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	tl.t.Log(strings.Trim(string(p), "\n"))
	return len(p), nil
}

// recorder keeps the order in which lifecycle calls happened, across all
// test workers.
type recorder struct {
	events []string
	sync.Mutex
}

func (r *recorder) add(ev string) {
	r.Lock()
	r.events = append(r.events, ev)
	r.Unlock()
}

func (r *recorder) get() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string{}, r.events...)
}

func (r *recorder) count(ev string) int {
	n := 0
	for _, e := range r.get() {
		if e == ev {
			n++
		}
	}
	return n
}

// bareW has no Stop capability.
type bareW struct {
	name  string
	alive atomic.Bool
	rec   *recorder
	fail  bool
}

func (w *bareW) Start() error {
	if w.fail {
		w.rec.add("fail:" + w.name)
		return errors.New("Injected failure")
	}
	w.rec.add("start:" + w.name)
	w.alive.Store(true)
	return nil
}

func (w *bareW) Alive() bool {
	return w.alive.Load()
}

func (w *bareW) kill() {
	w.alive.Store(false)
}

// stopW adds Stop and Join.
type stopW struct {
	bareW
	stopErr error
	hang    chan struct{}
}

func (w *stopW) Stop() error {
	w.rec.add("stop:" + w.name)
	return w.stopErr
}

func (w *stopW) Join() {
	if w.hang != nil {
		<-w.hang
	}
	w.alive.Store(false)
	w.rec.add("join:" + w.name)
}

// testType builds workers of a single kind, remembering each one it made.
type testType struct {
	name      string
	rec       *recorder
	stoppable bool
	fail      atomic.Bool
	stopErr   error
	hang      chan struct{}
	made      []*stopW
	lock      sync.Mutex
}

func (tt *testType) Name() string {
	return tt.name
}

func (tt *testType) New() (Worker, error) {
	w := &stopW{
		bareW:   bareW{name: tt.name, rec: tt.rec, fail: tt.fail.Load()},
		stopErr: tt.stopErr,
		hang:    tt.hang,
	}
	tt.lock.Lock()
	tt.made = append(tt.made, w)
	tt.lock.Unlock()
	if !tt.stoppable {
		return &w.bareW, nil
	}
	return w, nil
}

// last returns the most recently constructed worker.
func (tt *testType) last() *stopW {
	tt.lock.Lock()
	defer tt.lock.Unlock()
	if len(tt.made) == 0 {
		return nil
	}
	return tt.made[len(tt.made)-1]
}

func (tt *testType) count() int {
	tt.lock.Lock()
	defer tt.lock.Unlock()
	return len(tt.made)
}

func newTestType(name string, rec *recorder, stoppable bool) *testType {
	return &testType{name: name, rec: rec, stoppable: stoppable}
}

// fakeLoader hands out canned configurations.
type fakeLoader struct {
	cfg   map[string]interface{}
	err   error
	loads int
	sync.Mutex
}

func (f *fakeLoader) Load() (map[string]interface{}, error) {
	f.Lock()
	defer f.Unlock()
	f.loads++
	return f.cfg, f.err
}

func (f *fakeLoader) set(cfg map[string]interface{}, err error) {
	f.Lock()
	f.cfg = cfg
	f.err = err
	f.Unlock()
}

func (f *fakeLoader) String() string {
	return "fake loader"
}

// logLines returns the retained log text containing substr.
func logLines(s *Supervisor, substr string) []string {
	recs, _ := s.GetLog(0, "")
	var rv []string
	for _, r := range recs {
		if strings.Contains(r.Text, substr) {
			rv = append(rv, r.Text)
		}
	}
	return rv
}
