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
	"log"
	"strings"
	"sync"
)

// MultiLogger fans lines written to it out to a set of log.Loggers, each of
// which keeps its own prefix and flags.  It is an io.Writer, expecting whole
// lines per call, which is what log.Logger delivers.
type MultiLogger struct {
	loggers []*log.Logger
	lock    sync.Mutex
}

func (l *MultiLogger) Write(b []byte) (int, error) {
	lines := strings.Split(strings.Trim(string(b), "\n"), "\n")
	l.lock.Lock()
	for _, line := range lines {
		for _, logger := range l.loggers {
			logger.Println(line)
		}
	}
	l.lock.Unlock()
	return len(b), nil
}

// AddLogger adds a destination.  Adding the same logger twice has no
// effect.
func (l *MultiLogger) AddLogger(logger *log.Logger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, x := range l.loggers {
		if x == logger {
			return
		}
	}
	l.loggers = append(l.loggers, logger)
}

// DelLogger removes a destination.
func (l *MultiLogger) DelLogger(logger *log.Logger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, x := range l.loggers {
		if x == logger {
			l.loggers = append(l.loggers[:i], l.loggers[i+1:]...)
			return
		}
	}
}

// Logger returns a log.Logger writing through this MultiLogger with the
// given prefix.  Destinations apply their own flags, so none are set here.
func (l *MultiLogger) Logger(prefix string) *log.Logger {
	return log.New(l, prefix, 0)
}

func NewMultiLogger() *MultiLogger {
	return &MultiLogger{}
}
