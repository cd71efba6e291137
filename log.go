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
	"strings"
	"sync"
	"time"
)

const (
	MaxLogRecords = 1000
)

// LogRecord is one line of the supervisor log.  Source is the worker type
// the line came from, taken from the "[name] " prefix that per-type loggers
// add; it is empty for supervisor messages.
type LogRecord struct {
	Id     int64     `json:"id,string"`
	Time   time.Time `json:"time"`
	Source string    `json:"source,omitempty"`
	Text   string    `json:"text"`
}

// Log is a bounded, in-memory record of recent log lines.  Every write
// advances an id, which callers can use as an Etag to find out whether
// anything changed, or to wait for a change with Watch.
type Log struct {
	records    []LogRecord
	numRecords int
	id         int64
	changed    chan struct{}
	mx         sync.Mutex
}

func splitSource(line string) (string, string) {
	if !strings.HasPrefix(line, "[") {
		return "", line
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return "", line
	}
	return line[1:end], line[end+2:]
}

// Write implements io.Writer, so that a Log can back a log.Logger.  Each
// line of input becomes its own record.
func (l *Log) Write(b []byte) (int, error) {
	now := time.Now()
	str := strings.Trim(string(b), "\n")

	l.mx.Lock()
	for _, line := range strings.Split(str, "\n") {
		idx := l.numRecords % len(l.records)
		l.id++
		src, text := splitSource(line)
		l.records[idx] = LogRecord{
			Id:     l.id,
			Time:   now,
			Source: src,
			Text:   text,
		}
		// numRecords keeps counting past the capacity; the modulus
		// gives us the next slot.
		l.numRecords++
	}
	close(l.changed)
	l.changed = make(chan struct{})
	l.mx.Unlock()
	return len(b), nil
}

// Clear discards all records.
func (l *Log) Clear() {
	l.mx.Lock()
	l.numRecords = 0
	// Ids must not be reused, or clients holding an old Etag would miss
	// the change.  We assume fewer than one write per nanosecond.
	l.id = time.Now().UnixNano()
	close(l.changed)
	l.changed = make(chan struct{})
	l.mx.Unlock()
}

// Records returns the retained records, oldest first, along with the
// current id.  If last equals the current id, nothing has changed and nil
// is returned.  A non-empty source restricts the result to lines from that
// worker type.
func (l *Log) Records(last int64, source string) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()

	if l.id == last {
		return nil, last
	}
	cnt := l.numRecords
	if cnt > len(l.records) {
		cnt = len(l.records)
	}
	recs := make([]LogRecord, 0, cnt)
	for i := l.numRecords - cnt; i < l.numRecords; i++ {
		r := l.records[i%len(l.records)]
		if source != "" && r.Source != source {
			continue
		}
		recs = append(recs, r)
	}
	return recs, l.id
}

// Watch waits until the id differs from last, or until ctx is done, and
// returns the current id.
func (l *Log) Watch(ctx context.Context, last int64) int64 {
	l.mx.Lock()
	id, ch := l.id, l.changed
	l.mx.Unlock()

	if id != last {
		return id
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}

	l.mx.Lock()
	defer l.mx.Unlock()
	return l.id
}

// NewLog returns a Log retaining up to max records.  If max is not
// positive, MaxLogRecords is used.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records: make([]LogRecord, max),
		id:      time.Now().UnixNano(),
		changed: make(chan struct{}),
	}
}
