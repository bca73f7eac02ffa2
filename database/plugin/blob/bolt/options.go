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

package bolt

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreBoltOptionFunc func(*BlobStoreBolt)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreBoltOptionFunc {
	return func(b *BlobStoreBolt) {
		b.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreBoltOptionFunc {
	return func(b *BlobStoreBolt) {
		b.promRegistry = registry
	}
}

// WithDataDir specifies the directory that holds the database file
func WithDataDir(dataDir string) BlobStoreBoltOptionFunc {
	return func(b *BlobStoreBolt) {
		b.dataDir = dataDir
	}
}

// WithTimeout specifies how long to wait for the file lock on open
func WithTimeout(timeout time.Duration) BlobStoreBoltOptionFunc {
	return func(b *BlobStoreBolt) {
		b.timeout = timeout
	}
}

// WithNoSync skips fsync after each commit
func WithNoSync(noSync bool) BlobStoreBoltOptionFunc {
	return func(b *BlobStoreBolt) {
		b.noSync = noSync
	}
}
