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
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFuncWorker(t *testing.T) {
	Convey("Given a function worker type", t, func() {
		wt := NewFuncType("f", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		So(wt.Name(), ShouldEqual, "f")
		w, e := wt.New()
		So(e, ShouldBeNil)
		w.(LoggerSetter).SetLogger(log.New(&testLog{t}, "", 0))
		So(w.Start(), ShouldBeNil)
		So(w.Alive(), ShouldBeTrue)

		Convey("Stop and Join end it", func() {
			st, ok := w.(Stopper)
			So(ok, ShouldBeTrue)
			So(st.Stop(), ShouldBeNil)
			st.Join()
			So(w.Alive(), ShouldBeFalse)
			So(errors.Is(w.(*funcWorker).Err(), context.Canceled), ShouldBeTrue)
		})
	})

	Convey("A function that returns is no longer alive", t, func() {
		wt := NewFuncType("g", func(ctx context.Context) error {
			return errors.New("done")
		})
		w, _ := wt.New()
		w.(LoggerSetter).SetLogger(log.New(&testLog{t}, "", 0))
		So(w.Start(), ShouldBeNil)
		w.(Stopper).Join()
		So(w.Alive(), ShouldBeFalse)
		So(w.(*funcWorker).Err().Error(), ShouldEqual, "done")
	})

	Convey("A panicking function is contained", t, func() {
		wt := NewFuncType("p", func(ctx context.Context) error {
			panic("oops")
		})
		w, _ := wt.New()
		So(w.Start(), ShouldBeNil)
		w.(Stopper).Join()
		So(w.Alive(), ShouldBeFalse)
		So(w.(*funcWorker).Err().Error(), ShouldContainSubstring, "oops")
	})

	Convey("The exit error of a function is reported", t, func() {
		var calls atomic.Int32
		wt := NewFuncType("f", func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				return errors.New("boom")
			}
			<-ctx.Done()
			return nil
		})
		s := newTestSupervisor(t, wt)
		s.Tend()
		waitFor(func() bool { return !s.Workers()[0].Running })
		s.Tend()
		wi := s.Workers()[0]
		So(wi.Running, ShouldBeTrue)
		So(wi.Restarts, ShouldEqual, 1)
		So(wi.ExitError, ShouldEqual, "boom")
		So(wi.LastError, ShouldEqual, "")
		So(len(logLines(s, "exited: boom")), ShouldEqual, 1)
	})

	Convey("Function workers are restarted by a supervisor", t, func() {
		quit := make(chan struct{}, 1)
		wt := NewFuncType("q", func(ctx context.Context) error {
			select {
			case <-quit:
			case <-ctx.Done():
			}
			return nil
		})
		reg, _ := NewRegistry(wt)
		s := NewSupervisor("func", reg, WithInterval(10*time.Millisecond))
		s.SetLogger(log.New(&testLog{t}, "", 0))
		done := make(chan error, 1)
		go func() { done <- s.Run(context.Background()) }()

		waitFor(func() bool { return s.Workers()[0].Running })
		quit <- struct{}{}
		waitFor(func() bool { return s.Workers()[0].Starts == 2 })
		s.State().RequestShutdown()
		So(<-done, ShouldBeNil)
		So(s.Workers()[0].Running, ShouldBeFalse)
	})
}
