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
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/gdamore/warden/config"
)

// DefaultInterval is the time between tend passes.
const DefaultInterval = time.Second

// Phase is the supervisor's position in its lifecycle.  Phases only ever
// advance, in the order they are declared.
type Phase int

const (
	PhaseConfiguring Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	}
	return "unknown"
}

// typeStats is what we remember about a worker type across restarts.
type typeStats struct {
	starts      int
	failures    int
	restarts    int
	lastErr     error
	lastExit    error
	reason      string
	stamp       time.Time
	rateLogged  bool
	limiter     *rate.Limiter
	lastStarted time.Time
}

// Supervisor keeps one live worker of every registered type, replacing
// workers that die, until it is told to shut down, at which point it stops
// them all in registration order.
//
// All of the work happens in the goroutine calling Run.  Other goroutines
// interact with a running Supervisor only through its State (to request a
// reload or shutdown) and through the read-only accessors.
type Supervisor struct {
	name        string
	reg         *Registry
	st          *State
	loader      config.Loader
	cfg         map[string]interface{}
	onReload    []func(map[string]interface{})
	live        map[string]*handle
	stats       map[string]*typeStats
	phase       Phase
	running     bool
	drained     bool
	interval    time.Duration
	stopTimeout time.Duration
	defInterval time.Duration
	defStop     time.Duration
	limit       rate.Limit
	burst       int
	reset       chan struct{}
	promReg     prometheus.Registerer
	gatherer    prometheus.Gatherer
	metrics     *metrics
	logger      *log.Logger
	log         *Log
	mlog        *MultiLogger
	slog        *log.Logger
	serial      int64
	changed     chan struct{}
	createTime  time.Time
	updateTime  time.Time
	mx          sync.Mutex
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithInterval sets the time between tend passes.
func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStopTimeout bounds how long the drain pass waits for each worker to
// finish after Stop.  A worker that takes longer is logged and abandoned.
// The default, zero, waits forever.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.stopTimeout = d
	}
}

// WithRestartLimit limits how often each worker type may be started.
// Starts beyond the limit are deferred to a later tick.  By default there
// is no limit.  A burst below one is treated as one.
func WithRestartLimit(r rate.Limit, burst int) Option {
	return func(s *Supervisor) {
		if burst < 1 {
			burst = 1
		}
		s.limit = r
		s.burst = burst
	}
}

// WithConfig sets the configuration source consulted at startup and on
// every reload.
func WithConfig(l config.Loader) Option {
	return func(s *Supervisor) {
		s.loader = l
	}
}

// WithState supplies the State that signals (or other callers) write to.
func WithState(st *State) Option {
	return func(s *Supervisor) {
		s.st = st
	}
}

// WithRegistry registers the supervisor's metrics with reg instead of a
// private registry, and serves metrics from g.  If g is nil, reg is used
// when it is also a Gatherer (as prometheus.DefaultRegisterer is).
func WithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(s *Supervisor) {
		s.promReg = reg
		s.gatherer = g
	}
}

// OnReload arranges for fn to be called, from the supervisor goroutine,
// with the new configuration after every successful reload.
func OnReload(fn func(map[string]interface{})) Option {
	return func(s *Supervisor) {
		s.onReload = append(s.onReload, fn)
	}
}

func (s *Supervisor) lock() {
	s.mx.Lock()
}

func (s *Supervisor) unlock() {
	s.mx.Unlock()
}

// bumpSerial records a change and wakes watchers.  Call with lock held.
func (s *Supervisor) bumpSerial() {
	s.updateTime = time.Now()
	s.serial++
	close(s.changed)
	s.changed = make(chan struct{})
}

// WatchSerial waits for the serial number to differ from old, or for ctx
// to be done, and returns the current serial.
func (s *Supervisor) WatchSerial(ctx context.Context, old int64) int64 {
	s.lock()
	rv, ch := s.serial, s.changed
	s.unlock()
	if rv != old {
		return rv
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
	s.lock()
	defer s.unlock()
	return s.serial
}

// Serial is incremented on every change visible through Info or Workers.
func (s *Supervisor) Serial() int64 {
	s.lock()
	defer s.unlock()
	return s.serial
}

func (s *Supervisor) Name() string {
	return s.name
}

// State returns the State this supervisor reads its flags from.
func (s *Supervisor) State() *State {
	return s.st
}

func (s *Supervisor) Phase() Phase {
	s.lock()
	defer s.unlock()
	return s.phase
}

func (s *Supervisor) setPhase(p Phase) {
	s.lock()
	if p > s.phase {
		s.phase = p
		s.bumpSerial()
	}
	s.unlock()
	s.logf("Supervisor %s is %s", s.name, p)
}

func (s *Supervisor) Interval() time.Duration {
	s.lock()
	defer s.unlock()
	return s.interval
}

// SetInterval changes the tick interval of a running supervisor.  A
// later reload without an interval setting restores the interval given
// to NewSupervisor.
func (s *Supervisor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.lock()
	s.interval = d
	s.bumpSerial()
	s.unlock()
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Config returns the current configuration.  The map is replaced, never
// modified, by a reload; callers must not modify it either.
func (s *Supervisor) Config() map[string]interface{} {
	s.lock()
	defer s.unlock()
	return s.cfg
}

// SetLogger establishes an additional destination for log messages,
// replacing the default of standard error.
func (s *Supervisor) SetLogger(l *log.Logger) {
	s.lock()
	if s.logger != nil {
		s.mlog.DelLogger(s.logger)
	}
	s.logger = l
	s.unlock()
	if l != nil {
		s.mlog.AddLogger(l)
	}
}

// Logger returns a logger whose lines are attributed to the named worker
// type.  An empty name yields the supervisor's own logger.
func (s *Supervisor) Logger(name string) *log.Logger {
	if name == "" {
		return s.slog
	}
	return s.mlog.Logger("[" + name + "] ")
}

func (s *Supervisor) logf(format string, v ...interface{}) {
	s.slog.Printf(format, v...)
}

// GetLog returns retained log records newer than the given id.  A
// non-empty name restricts them to one worker type.
func (s *Supervisor) GetLog(last int64, name string) ([]LogRecord, int64) {
	return s.log.Records(last, name)
}

func (s *Supervisor) WatchLog(ctx context.Context, old int64) int64 {
	return s.log.Watch(ctx, old)
}

// Gatherer exposes the metrics registry for scraping.
func (s *Supervisor) Gatherer() prometheus.Gatherer {
	return s.gatherer
}

func (s *Supervisor) statsFor(name string) *typeStats {
	ts, ok := s.stats[name]
	if !ok {
		ts = &typeStats{}
		if s.limit > 0 {
			ts.limiter = rate.NewLimiter(s.limit, s.burst)
		}
		s.stats[name] = ts
	}
	return ts
}

// note records a status message for a worker type.  Call with lock held.
func (s *Supervisor) note(name string, reason string) {
	ts := s.statsFor(name)
	ts.reason = reason
	ts.stamp = time.Now()
	s.bumpSerial()
}

// Reload reads the configuration source.  A missing source leaves the
// current configuration in place.  A malformed one does too, and the
// error is returned as a *ConfigLoadError.  Nothing is partially applied.
func (s *Supervisor) Reload() error {
	if s.loader == nil {
		return nil
	}
	cfg, e := s.loader.Load()
	if errors.Is(e, config.ErrNotFound) {
		s.logf("No configuration file found; keeping current settings")
		s.metrics.reloads.WithLabelValues("absent").Inc()
		return nil
	}
	var interval, stopTimeout time.Duration
	if e == nil {
		interval, stopTimeout, e = settings(cfg)
	}
	if e != nil {
		err := &ConfigLoadError{Err: e}
		s.logf("Failed to load configuration: %v", e)
		s.metrics.reloads.WithLabelValues("error").Inc()
		return err
	}
	if interval == 0 {
		interval = s.defInterval
	}
	if stopTimeout < 0 {
		stopTimeout = s.defStop
	}

	s.lock()
	s.cfg = cfg
	s.stopTimeout = stopTimeout
	hooks := append([]func(map[string]interface{}){}, s.onReload...)
	s.bumpSerial()
	s.unlock()

	if interval != s.Interval() {
		s.SetInterval(interval)
	}
	s.logf("Configuration loaded from %v", s.loader)
	s.metrics.reloads.WithLabelValues("ok").Inc()
	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// settings extracts the keys the supervisor itself understands.  Absent
// keys yield zero for interval and -1 for the stop timeout; Reload puts
// back the values given to NewSupervisor for those.
func settings(cfg map[string]interface{}) (time.Duration, time.Duration, error) {
	interval := time.Duration(0)
	stopTimeout := time.Duration(-1)
	if v, ok := cfg["interval"]; ok {
		d, e := config.Duration(v)
		if e != nil || d <= 0 {
			return 0, 0, fmt.Errorf("bad interval %v", v)
		}
		interval = d
	}
	if v, ok := cfg["stopTimeout"]; ok {
		d, e := config.Duration(v)
		if e != nil || d < 0 {
			return 0, 0, fmt.Errorf("bad stopTimeout %v", v)
		}
		stopTimeout = d
	}
	return interval, stopTimeout, nil
}

// protect runs fn, converting a panic into an error, so that one broken
// worker cannot take down the supervisor.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Tend runs one tend pass: every registered type, in order, that lacks a
// live worker gets a freshly constructed and started one.  Workers that
// are alive are left alone.  Once the supervisor is dying, Tend does
// nothing.
func (s *Supervisor) Tend() {
	s.lock()
	drained := s.drained
	s.unlock()
	if drained || s.st.Dying() {
		return
	}
	start := time.Now()
	for _, wt := range s.reg.Types() {
		s.tendType(wt)
	}
	s.metrics.tendTime.Observe(time.Since(start).Seconds())
}

func (s *Supervisor) tendType(wt WorkerType) {
	name := wt.Name()

	s.lock()
	h := s.live[name]
	s.unlock()

	if h != nil {
		if h.alive() {
			return
		}
		var exit error
		if er, ok := h.w.(ExitReporter); ok {
			exit = er.Err()
		}
		if exit != nil {
			s.logf("Worker %s (%s) exited: %v", name, h.id, exit)
		} else {
			s.logf("Worker %s (%s) is no longer alive", name, h.id)
		}
		s.lock()
		delete(s.live, name)
		ts := s.statsFor(name)
		ts.restarts++
		ts.lastExit = exit
		s.note(name, "Exited")
		s.metrics.live.Set(float64(len(s.live)))
		s.unlock()
		s.metrics.restarts.WithLabelValues(name).Inc()
	}

	s.lock()
	ts := s.statsFor(name)
	if ts.limiter != nil && !ts.limiter.Allow() {
		// Log only once per cool down.
		logit := !ts.rateLogged
		if logit {
			ts.rateLogged = true
			ts.lastErr = ErrRateLimited
			s.note(name, "Restarting too quickly")
		}
		s.unlock()
		if logit {
			s.logf("Worker %s restarting too quickly; deferring", name)
		}
		return
	}
	ts.rateLogged = false
	s.unlock()

	var w Worker
	e := protect(func() error {
		var err error
		if w, err = wt.New(); err != nil {
			return err
		}
		if w == nil {
			return ErrBadWorkerType
		}
		if ls, ok := w.(LoggerSetter); ok {
			ls.SetLogger(s.Logger(name))
		}
		return w.Start()
	})
	if e != nil {
		err := &WorkerStartError{Type: name, Err: e}
		s.logf("Failed to start %s: %v", name, e)
		s.lock()
		ts.failures++
		ts.lastErr = err
		s.note(name, "Failed to start: "+e.Error())
		s.unlock()
		s.metrics.failures.WithLabelValues(name).Inc()
		return
	}

	h = newHandle(wt, w)
	s.lock()
	s.live[name] = h
	ts.starts++
	ts.lastErr = nil
	ts.lastStarted = h.started
	s.note(name, "Started")
	s.metrics.live.Set(float64(len(s.live)))
	s.unlock()
	s.metrics.starts.WithLabelValues(name).Inc()
	s.logf("Started %s (%s)", name, h.id)
}

// Drain stops every live worker, in registration order, waiting for each
// to finish before moving to the next.  Workers that cannot be stopped
// are logged and left running.  Drain only ever runs once; later calls
// return immediately.
func (s *Supervisor) Drain() {
	s.lock()
	if s.drained {
		s.unlock()
		return
	}
	s.drained = true
	s.unlock()

	for _, wt := range s.reg.Types() {
		s.drainType(wt.Name())
	}
}

func (s *Supervisor) drainType(name string) {
	s.lock()
	h := s.live[name]
	s.unlock()
	if h == nil {
		return
	}

	stopper, ok := h.w.(Stopper)
	if !ok {
		s.logf("Worker %s (%s) is missing Stop(); skipping", name, h.id)
		s.lock()
		s.statsFor(name).lastErr = ErrMissingStop
		s.note(name, "Not stopped: missing Stop()")
		s.unlock()
		s.metrics.drainSkipped.WithLabelValues("missing_stop").Inc()
		return
	}

	s.logf("Stopping %s (%s)", name, h.id)
	if e := protect(stopper.Stop); e != nil {
		s.logf("Failed to stop %s: %v", name, e)
		s.lock()
		s.statsFor(name).lastErr = e
		s.note(name, "Failed to stop: "+e.Error())
		s.unlock()
		s.metrics.drainSkipped.WithLabelValues("stop_error").Inc()
		return
	}
	if !s.join(stopper) {
		s.logf("Timed out waiting for %s to stop; abandoning it", name)
		s.lock()
		s.statsFor(name).lastErr = ErrStopTimeout
		s.note(name, "Stop timed out")
		s.unlock()
		s.metrics.drainSkipped.WithLabelValues("timeout").Inc()
		return
	}

	s.lock()
	delete(s.live, name)
	s.note(name, "Stopped")
	s.metrics.live.Set(float64(len(s.live)))
	s.unlock()
	s.logf("Stopped %s", name)
}

func (s *Supervisor) join(st Stopper) bool {
	s.lock()
	d := s.stopTimeout
	s.unlock()
	if d <= 0 {
		st.Join()
		return true
	}
	done := make(chan struct{})
	go func() {
		st.Join()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// tick runs one iteration of the control loop, returning false once the
// supervisor has drained.
func (s *Supervisor) tick() bool {
	if s.st.Dying() {
		s.setPhase(PhaseDraining)
		s.Drain()
		return false
	}
	if s.st.takeReload() {
		s.logf("Reloading configuration")
		s.Reload()
		return true
	}
	s.Tend()
	return true
}

// Run supervises the registered workers until shutdown is requested,
// either through the State or by cancelling ctx, then drains them and
// returns.  The registry is sealed when Run begins.
func (s *Supervisor) Run(ctx context.Context) error {
	s.lock()
	if s.running {
		s.unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.unlock()

	s.reg.Seal()
	s.logf("*** Warden %s configuring ***", s.name)
	if e := s.Reload(); e != nil {
		s.logf("Continuing with previous configuration")
	}
	s.setPhase(PhaseRunning)
	s.logf("*** Warden %s supervising %d worker types ***",
		s.name, s.reg.Len())

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			s.st.RequestShutdown()
		}
		if !s.tick() {
			break
		}
		select {
		case <-ticker.C:
		case <-s.st.wakeup():
		case <-ctx.Done():
		case <-s.reset:
			ticker.Reset(s.Interval())
		}
	}

	s.setPhase(PhaseTerminated)
	s.logf("*** Warden %s shut down ***", s.name)
	return nil
}

// NewSupervisor returns a Supervisor for the types in reg.
func NewSupervisor(name string, reg *Registry, opts ...Option) *Supervisor {
	if name == "" {
		name = "warden"
	}
	if reg == nil {
		reg = &Registry{}
	}
	// The serial starts at the current time in nanoseconds, so that a
	// client holding a serial from before a restart sees a change.
	s := &Supervisor{
		name:     name,
		reg:      reg,
		cfg:      map[string]interface{}{},
		live:     make(map[string]*handle),
		stats:    make(map[string]*typeStats),
		interval: DefaultInterval,
		reset:    make(chan struct{}, 1),
		serial:   time.Now().UnixNano(),
		changed:  make(chan struct{}),
	}
	s.createTime = time.Now()
	s.updateTime = s.createTime
	for _, o := range opts {
		o(s)
	}
	s.defInterval = s.interval
	s.defStop = s.stopTimeout
	if s.st == nil {
		s.st = NewState()
	}
	if s.promReg == nil {
		r := prometheus.NewRegistry()
		s.promReg = r
		if s.gatherer == nil {
			s.gatherer = r
		}
	}
	if s.gatherer == nil {
		if g, ok := s.promReg.(prometheus.Gatherer); ok {
			s.gatherer = g
		} else {
			s.gatherer = prometheus.Gatherers{}
		}
	}
	s.metrics = newMetrics(s.promReg, name)

	s.mlog = NewMultiLogger()
	s.log = NewLog(MaxLogRecords)
	s.mlog.AddLogger(log.New(s.log, "", 0))
	s.logger = log.New(os.Stderr, "", log.LstdFlags)
	s.mlog.AddLogger(s.logger)
	s.slog = s.mlog.Logger("")
	return s
}
