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

package rest

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/gdamore/warden"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	tl.t.Log(strings.Trim(string(p), "\n"))
	return len(p), nil
}

func newSupervisor(t *testing.T) *warden.Supervisor {
	idle := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	reg, e := warden.NewRegistry(
		warden.NewFuncType("alpha", idle),
		warden.NewFuncType("beta", idle))
	So(e, ShouldBeNil)
	s := warden.NewSupervisor("resttest", reg)
	s.SetLogger(log.New(&testLog{t}, "", 0))
	return s
}

func TestRest(t *testing.T) {
	Convey("Given a supervisor served over HTTP", t, func() {
		s := newSupervisor(t)
		s.Tend()
		defer s.Drain()

		h := NewHandler(s)
		srv := httptest.NewServer(h)
		defer srv.Close()
		c := NewClient(nil, srv.URL)
		ctx := context.Background()

		Convey("Info describes the supervisor", func() {
			info, e := c.Info(ctx)
			So(e, ShouldBeNil)
			So(info.Name, ShouldEqual, "resttest")
			So(info.Types, ShouldEqual, 2)
			So(info.Live, ShouldEqual, 2)
			So(info.Serial, ShouldEqual, s.Serial())
		})

		Convey("Workers are listed in order", func() {
			ws, e := c.Workers(ctx)
			So(e, ShouldBeNil)
			So(len(ws), ShouldEqual, 2)
			So(ws[0].Name, ShouldEqual, "alpha")
			So(ws[0].Running, ShouldBeTrue)
			So(ws[1].Name, ShouldEqual, "beta")

			w, e := c.Worker(ctx, "beta")
			So(e, ShouldBeNil)
			So(w.Id, ShouldEqual, ws[1].Id)
		})

		Convey("Unknown workers are not found", func() {
			_, e := c.Worker(ctx, "gamma")
			So(e, ShouldNotBeNil)
			re, isRest := e.(*Error)
			So(isRest, ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)
			So(re.Message, ShouldEqual, "Worker not found")

			_, e = c.Log(ctx, "gamma")
			So(e, ShouldNotBeNil)
		})

		Convey("A watch returns when something changes", func() {
			wl, e := c.WatchWorkers(ctx, nil)
			So(e, ShouldBeNil)
			go func() {
				time.Sleep(20 * time.Millisecond)
				s.SetInterval(time.Minute)
			}()
			start := time.Now()
			nwl, e := c.WatchWorkers(ctx, wl)
			So(e, ShouldBeNil)
			So(nwl, ShouldNotEqual, wl)
			So(nwl.etag, ShouldNotEqual, wl.etag)
			So(time.Since(start), ShouldBeLessThan, 10*time.Second)
		})

		Convey("A watch gives up with its context", func() {
			info, e := c.Info(ctx)
			So(e, ShouldBeNil)
			tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, e = c.WatchInfo(tctx, info)
			So(e, ShouldNotBeNil)
		})

		Convey("Unchanged resources are not resent", func() {
			res, e := http.Get(srv.URL + "/workers")
			So(e, ShouldBeNil)
			res.Body.Close()
			tag := res.Header.Get("Etag")
			So(tag, ShouldNotEqual, "")

			req, _ := http.NewRequest("GET", srv.URL+"/workers", nil)
			req.Header.Set("If-None-Match", tag)
			res, e = http.DefaultClient.Do(req)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusNotModified)
		})

		Convey("Logs can be fetched whole or per worker", func() {
			s.Logger("alpha").Printf("hello alpha")
			li, e := c.Log(ctx, "alpha")
			So(e, ShouldBeNil)
			So(len(li.Records), ShouldBeGreaterThan, 0)
			last := li.Records[len(li.Records)-1]
			So(last.Text, ShouldEqual, "hello alpha")
			So(last.Source, ShouldEqual, "alpha")

			all, e := c.Log(ctx, "")
			So(e, ShouldBeNil)
			So(len(all.Records), ShouldBeGreaterThan, len(li.Records))

			go func() {
				time.Sleep(20 * time.Millisecond)
				s.Logger("alpha").Printf("second")
			}()
			nli, e := c.WatchLog(ctx, "alpha", li)
			So(e, ShouldBeNil)
			So(nli.Records[len(nli.Records)-1].Text, ShouldEqual, "second")
		})

		Convey("Reload and shutdown set the flags", func() {
			So(c.Reload(ctx), ShouldBeNil)
			So(s.State().ReloadPending(), ShouldBeTrue)
			So(c.Shutdown(ctx), ShouldBeNil)
			So(s.State().Dying(), ShouldBeTrue)

			e := c.Reload(ctx)
			So(e, ShouldNotBeNil)
			So(e.(*Error).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Metrics are exposed", func() {
			res, e := http.Get(srv.URL + "/metrics")
			So(e, ShouldBeNil)
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()
			So(string(body), ShouldContainSubstring, "warden_workers_live")
			So(string(body), ShouldContainSubstring, `type="alpha"`)
		})

		Convey("Wrong methods are refused", func() {
			res, e := http.Get(srv.URL + "/shutdown")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
			So(s.State().Dying(), ShouldBeFalse)
		})
	})
}

func TestAuth(t *testing.T) {
	Convey("Given a server requiring a password", t, func() {
		s := newSupervisor(t)
		h := NewHandler(s)
		hash, e := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		So(e, ShouldBeNil)
		So(h.AddUser("admin", string(hash)), ShouldBeNil)
		So(h.AddUser("bogus", "not a hash"), ShouldNotBeNil)
		So(h.AddUser("", string(hash)), ShouldNotBeNil)

		srv := httptest.NewServer(h)
		defer srv.Close()
		c := NewClient(nil, srv.URL)
		ctx := context.Background()

		Convey("Anonymous requests are refused", func() {
			_, e := c.Info(ctx)
			So(e, ShouldNotBeNil)
			So(e.(*Error).Code, ShouldEqual, http.StatusUnauthorized)
			So(c.Shutdown(ctx), ShouldNotBeNil)
			So(s.State().Dying(), ShouldBeFalse)
		})

		Convey("A wrong password is refused", func() {
			c.SetAuth("admin", "guess")
			_, e := c.Info(ctx)
			So(e, ShouldNotBeNil)
			So(e.(*Error).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("The right password is accepted", func() {
			c.SetAuth("admin", "secret")
			info, e := c.Info(ctx)
			So(e, ShouldBeNil)
			So(info.Name, ShouldEqual, "resttest")
		})
	})
}

func TestServe(t *testing.T) {
	Convey("Serve stops with its context", t, func() {
		s := newSupervisor(t)
		l, e := Listen("127.0.0.1:0", 2)
		So(e, ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- Serve(ctx, l, NewHandler(s))
		}()

		c := NewClient(nil, "http://"+l.Addr().String())
		info, e := c.Info(context.Background())
		So(e, ShouldBeNil)
		So(info.Name, ShouldEqual, "resttest")

		cancel()
		So(<-done, ShouldBeNil)
	})
}
