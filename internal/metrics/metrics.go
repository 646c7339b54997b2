// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus collectors for processed events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics reports the size and outcome of processed events.
type EventMetrics struct {
	entrySize *prometheus.HistogramVec
	processed *prometheus.CounterVec
}

// MustNewEventMetrics constructs an EventMetrics registered with reg, or the
// default registerer when reg is nil. Registration errors panic, mirroring
// promauto semantics.
func MustNewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &EventMetrics{
		entrySize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "event_shortener",
				Name:      "entry_size_bytes",
				Help:      "Measured bus entry size of incoming events.",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
			},
			[]string{"detail_type"},
		),
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "event_shortener",
				Name:      "events_processed_total",
				Help:      "Events processed, by detail-type and truncation outcome.",
			},
			[]string{"detail_type", "truncated"},
		),
	}
	reg.MustRegister(m.entrySize, m.processed)
	return m
}

// ObserveEvent records one processed event.
func (m *EventMetrics) ObserveEvent(detailType string, sizeBytes int, truncated bool) {
	if m == nil {
		return
	}
	outcome := "false"
	if truncated {
		outcome = "true"
	}
	m.entrySize.WithLabelValues(detailType).Observe(float64(sizeBytes))
	m.processed.WithLabelValues(detailType, outcome).Inc()
}
