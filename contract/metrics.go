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

package contract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type contractMetrics struct {
	messagesTotal        *prometheus.CounterVec
	queriesTotal         *prometheus.CounterVec
	certificatesIssued   prometheus.Gauge
	institutesRegistered prometheus.Gauge
	hashRetries          prometheus.Counter
}

func (m *contractMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.messagesTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certledger_contract_messages_total",
			Help: "total init and handle messages by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.queriesTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certledger_contract_queries_total",
			Help: "total queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.certificatesIssued = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "certledger_contract_certificates",
		Help: "number of issued certificates",
	})
	m.institutesRegistered = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "certledger_contract_institutes",
		Help: "number of registered institutes",
	})
	m.hashRetries = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "certledger_contract_hash_retries_total",
		Help: "certificate hash candidates rejected because they were taken",
	})
}
