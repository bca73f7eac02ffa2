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

// Package blobmetrics holds the prometheus metrics shared by blob backends
package blobmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamePrefix = "database_blob_"

// Metrics counts blob operations. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	opsTotal   *prometheus.CounterVec
	bytesTotal *prometheus.CounterVec
	commits    *prometheus.CounterVec
}

// New registers the blob metrics for the named backend. It returns nil if
// registry is nil.
func New(registry prometheus.Registerer, backend string) *Metrics {
	if registry == nil {
		return nil
	}
	promautoFactory := promauto.With(
		prometheus.WrapRegistererWith(
			prometheus.Labels{"backend": backend},
			registry,
		),
	)
	return &Metrics{
		opsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "ops_total",
				Help: "Total number of blob operations",
			},
			[]string{"op"},
		),
		bytesTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "bytes_total",
				Help: "Total bytes read/written for blob operations",
			},
			[]string{"op"},
		),
		commits: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "txn_total",
				Help: "Total number of finished blob transactions",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) Op(op string, size int) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op).Inc()
	if size > 0 {
		m.bytesTotal.WithLabelValues(op).Add(float64(size))
	}
}

func (m *Metrics) Commit() {
	if m == nil {
		return
	}
	m.commits.WithLabelValues("commit").Inc()
}

func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.commits.WithLabelValues("rollback").Inc()
}
