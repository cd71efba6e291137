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
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// WorkerInfo is a snapshot of one worker type and its current instance.
type WorkerInfo struct {
	Name      string    `json:"name"`
	Id        string    `json:"id,omitempty"`
	Running   bool      `json:"running"`
	Stoppable bool      `json:"stoppable"`
	Starts    int       `json:"starts"`
	Failures  int       `json:"failures"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"lastError,omitempty"`
	ExitError string    `json:"exitError,omitempty"`
	Started   time.Time `json:"started"`
	Status    string    `json:"status"`
	TimeStamp time.Time `json:"tstamp"`
}

// Info is a snapshot of the supervisor as a whole.
type Info struct {
	Name       string        `json:"name"`
	Phase      string        `json:"phase"`
	Serial     int64         `json:"serial,string"`
	CreateTime time.Time     `json:"created"`
	UpdateTime time.Time     `json:"updated"`
	Interval   time.Duration `json:"interval"`
	Types      int           `json:"types"`
	Live       int           `json:"live"`
	Pid        int           `json:"pid"`
	RSS        uint64        `json:"rss,omitempty"`
	CPUPercent float64       `json:"cpu,omitempty"`
	Threads    int32         `json:"threads,omitempty"`
}

// workerInfo builds the info for one type.  Call with lock held.
func (s *Supervisor) workerInfo(wt WorkerType) WorkerInfo {
	name := wt.Name()
	info := WorkerInfo{Name: name, Status: "Waiting to start"}
	if ts, ok := s.stats[name]; ok {
		info.Starts = ts.starts
		info.Failures = ts.failures
		info.Restarts = ts.restarts
		info.Started = ts.lastStarted
		if ts.lastErr != nil {
			info.LastError = ts.lastErr.Error()
		}
		if ts.lastExit != nil {
			info.ExitError = ts.lastExit.Error()
		}
		if ts.reason != "" {
			info.Status = ts.reason
			info.TimeStamp = ts.stamp
		}
	}
	if h, ok := s.live[name]; ok {
		info.Id = h.id.String()
		info.Running = h.alive()
		_, info.Stoppable = h.w.(Stopper)
	}
	return info
}

// Workers returns information on every registered type, in registration
// order.
func (s *Supervisor) Workers() []WorkerInfo {
	types := s.reg.Types()
	rv := make([]WorkerInfo, 0, len(types))
	s.lock()
	for _, wt := range types {
		rv = append(rv, s.workerInfo(wt))
	}
	s.unlock()
	return rv
}

// Worker returns information on the named type.
func (s *Supervisor) Worker(name string) (WorkerInfo, error) {
	wt, ok := s.reg.Lookup(name)
	if !ok {
		return WorkerInfo{}, ErrNoSuchWorker
	}
	s.lock()
	defer s.unlock()
	return s.workerInfo(wt), nil
}

// Info returns top-level information about the supervisor.  Process
// statistics are best effort, and left zero where the platform does not
// supply them.
func (s *Supervisor) Info() *Info {
	s.lock()
	i := &Info{
		Name:       s.name,
		Phase:      s.phase.String(),
		Serial:     s.serial,
		CreateTime: s.createTime,
		UpdateTime: s.updateTime,
		Interval:   s.interval,
		Live:       len(s.live),
		Pid:        os.Getpid(),
	}
	s.unlock()
	i.Types = s.reg.Len()

	if p, e := process.NewProcess(int32(i.Pid)); e == nil {
		if mem, e := p.MemoryInfo(); e == nil {
			i.RSS = mem.RSS
		}
		if cpu, e := p.CPUPercent(); e == nil {
			i.CPUPercent = cpu
		}
		if n, e := p.NumThreads(); e == nil {
			i.Threads = n
		}
	}
	return i
}
