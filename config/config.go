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

// Package config locates and parses the supervisor's configuration file.
//
// The file is looked for in an ordered list of candidate locations, and the
// first one that exists is used.  It is not an error for none of them to
// exist; Load reports ErrNotFound, and callers keep whatever configuration
// they already had.  The format is chosen by file extension: Hjson (which
// also accepts plain JSON), YAML, or TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hjson/hjson-go/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound    = errors.New("No configuration file found")
	ErrBadFormat   = errors.New("Unknown configuration file format")
	ErrNotAMapping = errors.New("Configuration is not a mapping")
)

// DefaultPaths are searched, in order, when no paths are given.
var DefaultPaths = []string{
	"./config.hjson",
	"/etc/warden/config.hjson",
}

// Loader is anything that can produce a configuration document.
type Loader interface {
	Load() (map[string]interface{}, error)
}

// Source is a Loader backed by the first existing file among a list of
// candidates.  The candidates are checked afresh on every Load, so a file
// created after startup is picked up by the next reload.
type Source struct {
	paths []string
	used  string
	lock  sync.Mutex
}

// NewSource returns a Source searching paths in order, or DefaultPaths
// if none are given.
func NewSource(paths ...string) *Source {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &Source{paths: append([]string{}, paths...)}
}

func (s *Source) Paths() []string {
	return append([]string{}, s.paths...)
}

// Used returns the path of the file most recently loaded, if any.
func (s *Source) Used() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.used
}

func (s *Source) String() string {
	if u := s.Used(); u != "" {
		return u
	}
	return strings.Join(s.paths, ", ")
}

// Find returns the first candidate that exists as a regular file.
func (s *Source) Find() (string, error) {
	for _, p := range s.paths {
		if fi, e := os.Stat(p); e == nil && fi.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// Load reads and parses the first existing candidate.
func (s *Source) Load() (map[string]interface{}, error) {
	p, e := s.Find()
	if e != nil {
		return nil, e
	}
	data, e := os.ReadFile(p)
	if e != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, e)
	}
	m, e := Parse(p, data)
	if e != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p, e)
	}
	s.lock.Lock()
	s.used = p
	s.lock.Unlock()
	return m, nil
}

// Parse decodes data in the format implied by name's extension.  An empty
// document is an empty mapping.
func Parse(name string, data []byte) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	var e error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hjson", ".json":
		var v interface{}
		if e = hjson.Unmarshal(data, &v); e == nil {
			var ok bool
			if m, ok = v.(map[string]interface{}); !ok {
				e = ErrNotAMapping
			}
		}
	case ".yaml", ".yml":
		e = yaml.Unmarshal(data, &m)
	case ".toml":
		e = toml.Unmarshal(data, &m)
	default:
		e = ErrBadFormat
	}
	if e != nil {
		return nil, e
	}
	return m, nil
}

// Duration interprets a configuration value as a duration.  Strings use
// time.ParseDuration syntax ("1.5s", "200ms"); bare numbers are seconds.
func Duration(v interface{}) (time.Duration, error) {
	switch v := v.(type) {
	case string:
		return time.ParseDuration(v)
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case time.Duration:
		return v, nil
	}
	return 0, fmt.Errorf("cannot use %T as a duration", v)
}
