// Package metrics carries the Prometheus instruments shared by the feed
// daemons and the named counter blocks behind the daily statistics report.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one ingestion daemon.
type Metrics struct {
	// Frame metrics
	FramesTotal   *prometheus.CounterVec
	FrameLatency  prometheus.Histogram
	CommitSeconds prometheus.Histogram

	// Feed connection state
	FeedConnected *prometheus.GaugeVec
	Reconnects    *prometheus.CounterVec

	// TRUST-specific instruments; unused by the CIF/VSTP daemons
	DeferredDepth prometheus.Gauge
	MessagesTotal *prometheus.CounterVec
}

// New creates and registers all metrics under the given subsystem
// (cifdb, vstpdb, trustdb, ttreconcile).
func New(subsystem string) *Metrics {
	return &Metrics{
		FramesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "frames_total",
				Help:      "Broker frames processed, by outcome",
			},
			[]string{"outcome"}, // committed, rolled_back, malformed, timeout
		),

		FrameLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "frame_latency_seconds",
				Help:      "End-to-end latency from msg_queue_timestamp to arrival",
				Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64, 128, 256},
			},
		),

		CommitSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "commit_duration_seconds",
				Help:      "Database transaction duration per frame or file",
				Buckets:   prometheus.DefBuckets,
			},
		),

		FeedConnected: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "feed_connected",
				Help:      "Whether the broker connection is up (1) or down (0)",
			},
			[]string{"feed"},
		),

		Reconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "feed_reconnects_total",
				Help:      "Broker reconnect attempts",
			},
			[]string{"feed"},
		),

		DeferredDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "deferred_activations",
				Help:      "Activations parked awaiting their schedule",
			},
		),

		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openrail",
				Subsystem: subsystem,
				Name:      "messages_total",
				Help:      "TRUST messages by msg_type",
			},
			[]string{"msg_type"},
		),
	}
}

// RecordFrame records one frame outcome.
func (m *Metrics) RecordFrame(outcome string) {
	m.FramesTotal.WithLabelValues(outcome).Inc()
}

// RecordLatency records end-to-end latency in seconds.
func (m *Metrics) RecordLatency(seconds float64) {
	m.FrameLatency.Observe(seconds)
}

// SetConnected flips the connection gauge for a feed.
func (m *Metrics) SetConnected(feed string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.FeedConnected.WithLabelValues(feed).Set(v)
}
