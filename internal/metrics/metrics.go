// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store

	SnapshotsRetained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapkeeper_snapshots_retained",
		Help: "Number of snapshots in the published store state",
	})

	BytesRetained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapkeeper_bytes_retained",
		Help: "Total size in bytes of the published snapshots",
	})

	RescansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapkeeper_rescans_total",
		Help: "Rescans by result",
	}, []string{"result"}) // "ok", "error", "stale"

	RescanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapkeeper_rescan_duration_seconds",
		Help:    "Time spent fingerprinting the backup root",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	RescanSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapkeeper_rescan_skipped_total",
		Help: "Folders skipped during rescans",
	}, []string{"reason"}) // "malformed", "io"

	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapkeeper_evictions_total",
		Help: "Snapshots evicted by the retention budget",
	})

	DeletionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapkeeper_deletion_failures_total",
		Help: "Deletion hook calls that returned an error",
	})

	// Protocol and sessions

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapkeeper_commands_total",
		Help: "Commands handled by verb and result",
	}, []string{"verb", "result"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapkeeper_sessions_active",
		Help: "Open websocket sessions",
	})

	RepliesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapkeeper_replies_dropped_total",
		Help: "Replies addressed to a session that was already closed",
	})

	// Worker

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapkeeper_rescan_jobs_total",
		Help: "Rescan jobs taken from the mailbox by trigger",
	}, []string{"reason"})
)
