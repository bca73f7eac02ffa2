// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Runtime carries process-wide dependencies that cannot be set through
// plugin options. Plugins read it when they are created.
type Runtime struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

var (
	runtime      Runtime
	runtimeMutex sync.RWMutex
)

// SetRuntime replaces the runtime handed to plugins created after the call
func SetRuntime(r Runtime) {
	runtimeMutex.Lock()
	defer runtimeMutex.Unlock()
	runtime = r
}

// GetRuntime returns the current plugin runtime
func GetRuntime() Runtime {
	runtimeMutex.RLock()
	defer runtimeMutex.RUnlock()
	return runtime
}
