package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultApplied = "applied"
	resultFailed  = "failed"

	statusSuccess = "success"
	statusError   = "error"
)

var (
	syncPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbsync_sync_passes_total",
			Help: "Total number of sync passes",
		},
		[]string{"database", "status"},
	)

	syncChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbsync_sync_changes_total",
			Help: "Total number of record changes found by sync passes",
		},
		[]string{"database", "type", "result"},
	)

	syncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbsync_sync_pass_duration_seconds",
			Help:    "Sync pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"database"},
	)

	desktopWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbsync_desktop_writes_total",
			Help: "Total number of records written to or deleted from the device",
		},
		[]string{"database", "operation", "status"},
	)
)
