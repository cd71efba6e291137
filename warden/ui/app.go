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

// Package ui implements the full screen interface of the warden client.
package ui

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/warden"
	"github.com/gdamore/warden/rest"
	"github.com/gdamore/warden/warden/util"
)

// App is the root widget.  It shows one panel at a time, and keeps the
// data the panels display current by long polling the server in the
// background.
type App struct {
	app       *views.Application
	view      views.View
	panel     views.Widget
	info      *InfoPanel
	help      *HelpPanel
	log       *LogPanel
	main      *MainPanel
	auth      *AuthPanel
	client    *rest.Client
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	poke      chan struct{}
	logCancel context.CancelFunc

	// These are written by the pollers, and guarded by lock.
	err     error
	sup     *warden.Info
	items   []*warden.WorkerInfo
	logName string
	logInfo *rest.LogInfo
	logErr  error
	lock    sync.Mutex

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowInfo(name string) {
	a.info.SetName(name)
	a.show(a.info)
}

func (a *App) ShowLog(name string) {
	if a.logCancel != nil {
		a.logCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.lock.Lock()
	a.logInfo = nil
	a.logErr = nil
	a.logName = name
	a.lock.Unlock()
	a.logCancel = cancel
	a.log.SetName(name)
	go a.refreshLog(ctx, name)

	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

func (a *App) ShowAuth() {
	if a.panel == a.auth {
		return
	}
	a.auth.ResetFields()
	a.show(a.auth)
}

// SetUserPassword supplies new credentials, and retries at once.
func (a *App) SetUserPassword(user string, pass string) {
	a.client.SetAuth(user, pass)
	a.lock.Lock()
	a.err = nil
	a.items = nil
	a.lock.Unlock()
	select {
	case a.poke <- struct{}{}:
	default:
	}
}

// action runs a request in the background, so that a slow server does
// not freeze the screen.
func (a *App) action(what string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		if e := fn(ctx); e != nil {
			a.Logf("%s failed: %v", what, e)
		}
	}()
}

func (a *App) Reload() {
	a.action("Reload", a.client.Reload)
}

func (a *App) Shutdown() {
	a.action("Shutdown", a.client.Shutdown)
}

func (a *App) Quit() {
	/* This just posts the quit event. */
	a.app.Quit()
}

func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
	if logger != nil {
		logger.Printf("Start logger")
	}
}

func (a *App) Logf(fmt string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(fmt, v...)
	}
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "Warden v1.0"
}

func NewApp(client *rest.Client, url string) *App {

	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.poke = make(chan struct{}, 1)
	app.info = NewInfoPanel(app)
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.main = NewMainPanel(app, url)
	app.auth = NewAuthPanel(app, url)
	app.panel = app.main
	return app
}

// pause waits a bit before retrying a failed poll, returning false if the
// application is going away.
func (a *App) pause(ctx context.Context) bool {
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-a.poke:
	case <-timer.C:
	}
	return true
}

// refresh keeps the app items current
func (a *App) refresh() {
	var wl *rest.WorkerList
	for {
		nwl, e := a.client.WatchWorkers(a.ctx, wl)
		var sup *warden.Info
		if e == nil {
			sup, e = a.client.Info(a.ctx)
		}
		if a.ctx.Err() != nil {
			return
		}

		var items []*warden.WorkerInfo
		if e == nil {
			wl = nwl
			items = make([]*warden.WorkerInfo, 0, len(wl.Workers))
			for i := range wl.Workers {
				items = append(items, &wl.Workers[i])
			}
			util.SortWorkers(items)
		} else {
			wl = nil
			a.Logf("Failed to load workers: %v", e)
		}

		a.lock.Lock()
		a.items = items
		a.sup = sup
		a.err = e
		a.lock.Unlock()
		a.app.Update()

		if e != nil && !a.pause(a.ctx) {
			return
		}
	}
}

func (a *App) refreshLog(ctx context.Context, name string) {
	info, e := a.client.Log(ctx, name)

	for {
		if ctx.Err() != nil {
			return
		}
		a.lock.Lock()
		if a.logName == name {
			a.logInfo = info
			a.logErr = e
		}
		a.lock.Unlock()
		a.app.Update()

		if e != nil {
			if !a.pause(ctx) {
				return
			}
			info, e = a.client.Log(ctx, name)
			continue
		}
		info, e = a.client.WatchLog(ctx, name, info)
	}
}

// GetItems returns the workers, troubled ones first, along with the
// supervisor summary.
func (a *App) GetItems() ([]*warden.WorkerInfo, *warden.Info, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.items, a.sup, a.err
}

func (a *App) GetItem(name string) (*warden.WorkerInfo, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	for _, i := range a.items {
		if i.Name == name {
			return i, nil
		}
	}
	return nil, errors.New("Worker not found")
}

func (a *App) GetLog(name string) (*rest.LogInfo, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.logName == name {
		return a.logInfo, a.logErr
	}
	return nil, nil
}

func (a *App) Run() error {
	a.Logf("Starting up user interface")
	a.app.SetRootWidget(a)
	a.ShowMain()
	go a.refresh()
	go func() {
		// Give us periodic updates, so that uptimes advance.
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				a.app.Update()
			}
		}
	}()
	a.Logf("Starting app loop")
	e := a.app.Run()
	a.cancel()
	return e
}
