// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamguard_fetch_total",
			Help: "Total number of bounded fetches by kind and status class",
		},
		[]string{"kind", "status_class"},
	)
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamguard_fetch_duration_seconds",
			Help:    "Duration of bounded fetches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 8),
		},
		[]string{"kind", "status_class"},
	)
	probeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamguard_manifest_probe_total",
			Help: "Manifest readiness probe outcomes",
		},
		[]string{"outcome"},
	)
	probeAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamguard_manifest_probe_attempts",
			Help:    "Fetch attempts used per manifest readiness probe",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)
)

// StatusClass buckets an HTTP outcome for metric labels.
func StatusClass(err error, status int) string {
	if err != nil && status == 0 {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status > 0:
		return "1xx"
	}
	return "unknown"
}

// RecordFetch records one bounded fetch.
func RecordFetch(kind string, status int, duration time.Duration, err error) {
	class := StatusClass(err, status)
	fetchTotal.WithLabelValues(kind, class).Inc()
	fetchDuration.WithLabelValues(kind, class).Observe(duration.Seconds())
}

// RecordProbe records the outcome of a manifest readiness probe.
func RecordProbe(outcome string, attempts int) {
	probeOutcomes.WithLabelValues(outcome).Inc()
	probeAttempts.Observe(float64(attempts))
}
