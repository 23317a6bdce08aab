// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application counters. It implements auth.Recorder.
type Metrics struct {
	AuthEvents  *prometheus.CounterVec
	APIRequests *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradejournal_auth_events_total",
				Help: "Authentication and access decisions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradejournal_api_requests_total",
				Help: "API requests by action and envelope status",
			},
			[]string{"action", "status"},
		),
	}
	reg.MustRegister(m.AuthEvents, m.APIRequests)
	return m
}

// RecordAuthEvent counts one auth operation outcome.
func (m *Metrics) RecordAuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordRequest counts one API request.
func (m *Metrics) RecordRequest(action, status string) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(action, status).Inc()
}
