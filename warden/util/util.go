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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/warden"
)

// Status condenses a worker into one word.
func Status(w *warden.WorkerInfo) string {
	switch {
	case w.Running:
		return "running"
	case w.Id != "":
		// Still in the live set, but the process is gone.
		return "dead"
	case w.LastError != "":
		return "failed"
	case w.Starts == 0:
		return "waiting"
	}
	return "stopped"
}

// Uptime is how long the current instance has been running, to the
// second.  Workers that are not running have no uptime.
func Uptime(w *warden.WorkerInfo) time.Duration {
	if !w.Running || w.Started.IsZero() {
		return 0
	}
	d := time.Since(w.Started)
	return d - d%time.Second
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

func rank(w *warden.WorkerInfo) int {
	switch Status(w) {
	case "failed", "dead":
		return 0
	case "running":
		return 2
	}
	return 1
}

// SortWorkers puts troubled workers first, then idle ones, then running
// ones, each group by name.
func SortWorkers(items []*warden.WorkerInfo) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return a.Name < b.Name
	})
}
