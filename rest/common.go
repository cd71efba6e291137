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

// Package rest exposes a warden Supervisor over HTTP, and provides a
// client for it.
//
// Read-only resources carry an Etag.  A client holding an Etag may ask
// the server to wait for it to change (a long poll) by sending it in the
// PollEtagHeader, along with the longest wait in seconds in the
// PollTimeHeader.  The ordinary If-None-Match header is honored as well.
package rest

import (
	"strconv"
	"strings"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	PollEtagHeader = "X-Warden-Poll-Etag"
	PollTimeHeader = "X-Warden-Poll-Time"

	// MaxPollTime is the longest a server will hold a long poll, in
	// seconds.
	MaxPollTime = 300
)

var ok struct{}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func formatEtag(n int64) string {
	return `"` + strconv.FormatInt(n, 10) + `"`
}

func parseEtag(tag string) (int64, bool) {
	n, e := strconv.ParseInt(strings.Trim(tag, `"`), 10, 64)
	if e != nil {
		return 0, false
	}
	return n, true
}
