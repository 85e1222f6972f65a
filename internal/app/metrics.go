package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_http_requests_total",
		Help: "HTTP requests served by the central API, by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamsync_http_request_duration_seconds",
		Help:    "Latency of central API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	snapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_central_snapshot_writes_total",
		Help: "Snapshot writes offered to the central copy, by result.",
	}, []string{"result"})

	centralLastUpdated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamsync_central_snapshot_last_updated_ms",
		Help: "LastUpdated of the snapshot currently held by the central copy.",
	})
)
