//go:build !windows

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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/gdamore/warden/config"
)

func TestCommandManifests(t *testing.T) {
	Convey("Manifests decode from configuration", t, func() {
		cfg := map[string]interface{}{
			"workers": []interface{}{
				map[string]interface{}{
					"name":       "sleeper",
					"command":    []interface{}{"/bin/sleep", "30"},
					"stopSignal": "sigint",
					"stopTime":   "2s",
				},
				map[string]interface{}{
					"name":      "echo",
					"command":   []interface{}{"/bin/echo", "hi"},
					"directory": "/tmp",
				},
			},
		}
		ms, e := CommandManifests(cfg)
		So(e, ShouldBeNil)
		So(len(ms), ShouldEqual, 2)
		So(ms[0].Name, ShouldEqual, "sleeper")
		So(ms[0].Command, ShouldResemble, []string{"/bin/sleep", "30"})
		So(ms[0].StopSignal, ShouldEqual, "INT")
		So(ms[0].StopTime, ShouldEqual, 2*time.Second)
		So(ms[1].Dir, ShouldEqual, "/tmp")
	})

	Convey("Bare numbers for stopTime are seconds", t, func() {
		cfg := map[string]interface{}{
			"workers": []interface{}{
				map[string]interface{}{
					"name":     "float",
					"command":  []interface{}{"/bin/true"},
					"stopTime": 30.0,
				},
				map[string]interface{}{
					"name":     "int",
					"command":  []interface{}{"/bin/true"},
					"stopTime": 2,
				},
				map[string]interface{}{
					"name":     "int64",
					"command":  []interface{}{"/bin/true"},
					"stopTime": int64(5),
				},
			},
		}
		ms, e := CommandManifests(cfg)
		So(e, ShouldBeNil)
		So(ms[0].StopTime, ShouldEqual, 30*time.Second)
		So(ms[1].StopTime, ShouldEqual, 2*time.Second)
		So(ms[2].StopTime, ShouldEqual, 5*time.Second)

		cfg, e = config.Parse("w.hjson", []byte("{\n  workers: [\n    {\n      name: web\n      command: [ \"/bin/true\" ]\n      stopTime: 30\n    }\n  ]\n}"))
		So(e, ShouldBeNil)
		ms, e = CommandManifests(cfg)
		So(e, ShouldBeNil)
		So(ms[0].StopTime, ShouldEqual, 30*time.Second)
	})

	Convey("A bad stopTime is rejected", t, func() {
		_, e := CommandManifests(map[string]interface{}{
			"workers": []interface{}{
				map[string]interface{}{
					"name":     "bad",
					"command":  []interface{}{"/bin/true"},
					"stopTime": "soon",
				},
			},
		})
		So(e, ShouldNotBeNil)
	})

	Convey("No workers section is not an error", t, func() {
		ms, e := CommandManifests(map[string]interface{}{})
		So(e, ShouldBeNil)
		So(len(ms), ShouldEqual, 0)
	})

	Convey("Bad manifests are rejected", t, func() {
		_, e := CommandManifests(map[string]interface{}{
			"workers": []interface{}{
				map[string]interface{}{"name": "x"},
			},
		})
		So(e, ShouldNotBeNil)

		_, e = NewCommandType(CommandManifest{
			Name:       "y",
			Command:    []string{"/bin/true"},
			StopSignal: "BOGUS",
		})
		So(e, ShouldNotBeNil)

		_, e = NewCommandType(CommandManifest{Command: []string{"/bin/true"}})
		So(e, ShouldNotBeNil)
	})
}

func TestCommandWorker(t *testing.T) {
	Convey("Given a long running command", t, func() {
		wt, e := NewCommandType(CommandManifest{
			Name:    "sleeper",
			Command: []string{"/bin/sh", "-c", "echo ready; exec sleep 30"},
		})
		So(e, ShouldBeNil)
		w, e := wt.New()
		So(e, ShouldBeNil)
		w.(LoggerSetter).SetLogger(log.New(&testLog{t}, "", 0))
		So(w.Start(), ShouldBeNil)
		So(w.Alive(), ShouldBeTrue)

		Convey("Stop terminates it", func() {
			st := w.(Stopper)
			So(st.Stop(), ShouldBeNil)
			st.Join()
			So(w.Alive(), ShouldBeFalse)

			Convey("Stopping again is harmless", func() {
				So(st.Stop(), ShouldBeNil)
			})
		})
	})

	Convey("A command ignoring its stop signal is killed", t, func() {
		wt, _ := NewCommandType(CommandManifest{
			Name:     "stubborn",
			Command:  []string{"/bin/sh", "-c", "trap '' TERM; exec sleep 30"},
			StopTime: 100 * time.Millisecond,
		})
		w, _ := wt.New()
		So(w.Start(), ShouldBeNil)
		time.Sleep(50 * time.Millisecond)
		start := time.Now()
		So(w.(Stopper).Stop(), ShouldBeNil)
		w.(Stopper).Join()
		So(time.Since(start), ShouldBeLessThan, 10*time.Second)
		So(w.Alive(), ShouldBeFalse)
	})

	Convey("A command that exits reports why", t, func() {
		wt, _ := NewCommandType(CommandManifest{
			Name:    "quitter",
			Command: []string{"/bin/sh", "-c", "exit 3"},
		})
		w, _ := wt.New()
		So(w.Start(), ShouldBeNil)
		w.(Stopper).Join()
		So(w.Alive(), ShouldBeFalse)
		So(w.(ExitReporter).Err(), ShouldNotBeNil)
		So(w.(ExitReporter).Err().Error(), ShouldContainSubstring, "exit status 3")
	})

	Convey("A command that exits cleanly is still unexpected", t, func() {
		wt, _ := NewCommandType(CommandManifest{
			Name:    "done",
			Command: []string{"/bin/true"},
		})
		w, _ := wt.New()
		So(w.Start(), ShouldBeNil)
		w.(Stopper).Join()
		So(w.(ExitReporter).Err(), ShouldEqual, errUnexpectedExit)
	})

	Convey("A missing program fails to start", t, func() {
		wt, _ := NewCommandType(CommandManifest{
			Name:    "ghost",
			Command: []string{"/nonexistent/program"},
		})
		w, _ := wt.New()
		So(w.Start(), ShouldNotBeNil)
	})

	Convey("Command output reaches the supervisor log", t, func() {
		wt, _ := NewCommandType(CommandManifest{
			Name:    "talker",
			Command: []string{"/bin/sh", "-c", "echo hello; exec sleep 30"},
		})
		reg, _ := NewRegistry(wt)
		s := NewSupervisor("cmd", reg, WithInterval(10*time.Millisecond))
		s.SetLogger(log.New(&testLog{t}, "", 0))
		done := make(chan error, 1)
		go func() { done <- s.Run(context.Background()) }()

		waitFor(func() bool {
			recs, _ := s.GetLog(0, "talker")
			for _, r := range recs {
				if r.Text == "stdout> hello" {
					return true
				}
			}
			return false
		})
		s.State().RequestShutdown()
		So(<-done, ShouldBeNil)
		So(s.Workers()[0].Running, ShouldBeFalse)
	})
}
