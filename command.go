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
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/gdamore/warden/config"
)

// CommandManifest describes an operating system process to be kept
// running.  Manifests usually come from the "workers" list in the
// configuration file.
type CommandManifest struct {
	Name        string        `mapstructure:"name" json:"name"`
	Description string        `mapstructure:"description" json:"description"`
	Command     []string      `mapstructure:"command" json:"command"`
	Env         []string      `mapstructure:"env" json:"env"`
	Dir         string        `mapstructure:"directory" json:"directory"`
	StopSignal  string        `mapstructure:"stopSignal" json:"stopSignal"`
	StopTime    time.Duration `mapstructure:"stopTime" json:"stopTime"`
}

var errUnexpectedExit = errors.New("unexpected termination")

var stopSignals = map[string]os.Signal{
	"":     syscall.SIGTERM,
	"TERM": syscall.SIGTERM,
	"INT":  syscall.SIGINT,
	"HUP":  syscall.SIGHUP,
	"KILL": syscall.SIGKILL,
}

func (m *CommandManifest) validate() error {
	if m.Name == "" {
		return errors.New("command has no name")
	}
	if len(m.Command) == 0 {
		return fmt.Errorf("command %s: empty command line", m.Name)
	}
	sig := strings.TrimPrefix(strings.ToUpper(m.StopSignal), "SIG")
	if _, ok := stopSignals[sig]; !ok {
		return fmt.Errorf("command %s: unknown stop signal %q",
			m.Name, m.StopSignal)
	}
	m.StopSignal = sig
	return nil
}

// command is a Worker running one instance of a CommandManifest.
type command struct {
	m       CommandManifest
	cmd     *exec.Cmd
	logger  *log.Logger
	done    chan struct{}
	stopped bool
	err     error
	timer   *time.Timer
	lock    sync.Mutex
}

func (c *command) SetLogger(l *log.Logger) {
	c.logger = l
}

func (c *command) doLog(r io.Reader, prefix string, wg *sync.WaitGroup) {
	defer wg.Done()
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			c.logger.Print(prefix, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return
		}
	}
}

func (c *command) Start() error {
	c.cmd = exec.Command(c.m.Command[0], c.m.Command[1:]...)
	c.cmd.Dir = c.m.Dir
	if len(c.m.Env) != 0 {
		c.cmd.Env = append(os.Environ(), c.m.Env...)
	}

	stdout, e := c.cmd.StdoutPipe()
	if e != nil {
		return e
	}
	stderr, e := c.cmd.StderrPipe()
	if e != nil {
		return e
	}
	if e := c.cmd.Start(); e != nil {
		return e
	}
	c.logger.Printf("Running %s (pid %d)", c.cmd.Path, c.cmd.Process.Pid)

	wg := &sync.WaitGroup{}
	wg.Add(2)
	go c.doLog(stdout, "stdout> ", wg)
	go c.doLog(stderr, "stderr> ", wg)
	go c.doWait(wg)
	return nil
}

// doWait reaps the process.  The output readers must be drained first,
// as Wait closes the pipes.
func (c *command) doWait(wg *sync.WaitGroup) {
	wg.Wait()
	e := c.cmd.Wait()

	c.lock.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if !c.stopped {
		if e != nil {
			c.logger.Printf("Failed: %v", e)
		} else {
			c.logger.Printf("Unexpected termination")
			e = errUnexpectedExit
		}
	}
	c.err = e
	c.lock.Unlock()
	close(c.done)
}

func (c *command) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stop sends the stop signal.  If a stop time is set, the process is
// killed if it has not exited by then.
func (c *command) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.Alive() {
		return nil
	}
	c.stopped = true
	proc := c.cmd.Process
	if e := proc.Signal(stopSignals[c.m.StopSignal]); e != nil {
		if errors.Is(e, os.ErrProcessDone) {
			return nil
		}
		return e
	}
	if c.m.StopTime > 0 {
		c.timer = time.AfterFunc(c.m.StopTime, func() {
			if c.Alive() {
				c.logger.Printf("Graceful shutdown timed out")
				if e := proc.Kill(); e != nil {
					c.logger.Printf("Failed killing: %v", e)
				}
			}
		})
	}
	return nil
}

func (c *command) Join() {
	<-c.done
}

// Err reports how the process ended.
func (c *command) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.err
}

// NewCommandType returns a WorkerType that runs the manifest's command.
func NewCommandType(m CommandManifest) (WorkerType, error) {
	if e := m.validate(); e != nil {
		return nil, e
	}
	m.Command = append([]string{}, m.Command...)
	m.Env = append([]string{}, m.Env...)
	return NewWorkerType(m.Name, func() (Worker, error) {
		return &command{
			m:      m,
			done:   make(chan struct{}),
			logger: log.New(io.Discard, "", 0),
		}, nil
	}), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook decodes durations with the same rules as the supervisor's
// own settings, so that a bare number is seconds.
func durationHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	return config.Duration(data)
}

// CommandManifests decodes the "workers" list from a configuration.
// A configuration without one yields no manifests.
func CommandManifests(cfg map[string]interface{}) ([]CommandManifest, error) {
	raw, ok := cfg["workers"]
	if !ok {
		return nil, nil
	}
	var ms []CommandManifest
	dec, e := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(durationHook),
		WeaklyTypedInput: true,
		Result:           &ms,
	})
	if e != nil {
		return nil, e
	}
	if e := dec.Decode(raw); e != nil {
		return nil, fmt.Errorf("workers: %w", e)
	}
	for i := range ms {
		if e := ms[i].validate(); e != nil {
			return nil, e
		}
	}
	return ms, nil
}
