//go:build windows

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
	"syscall"
)

// No hangup here, so reload is only available through the REST API.
var (
	shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	reloadSignals   = []os.Signal{}
)
