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

package redis

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreRedisOptionFunc func(*BlobStoreRedis)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreRedisOptionFunc {
	return func(b *BlobStoreRedis) {
		b.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreRedisOptionFunc {
	return func(b *BlobStoreRedis) {
		b.promRegistry = registry
	}
}

// WithURL specifies the server URL, such as redis://localhost:6379/0
func WithURL(url string) BlobStoreRedisOptionFunc {
	return func(b *BlobStoreRedis) {
		b.url = url
	}
}

// WithPrefix specifies the prefix applied to every key
func WithPrefix(prefix string) BlobStoreRedisOptionFunc {
	return func(b *BlobStoreRedis) {
		b.prefix = prefix
	}
}

// WithTimeout specifies the timeout for each server round trip
func WithTimeout(timeout time.Duration) BlobStoreRedisOptionFunc {
	return func(b *BlobStoreRedis) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}
