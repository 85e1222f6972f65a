package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_sync_polls_total",
		Help: "Reconciliation attempts by outcome (adopted, kept, offline)",
	}, []string{"result"})

	pushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_sync_pushes_total",
		Help: "Snapshot pushes to the central copy by outcome",
	}, []string{"result"})

	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamsync_sync_online",
		Help: "1 when the last central copy request succeeded",
	})

	mutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_mutations_total",
		Help: "Local mutations by outcome",
	}, []string{"result"})

	notificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamsync_notifications_emitted_total",
		Help: "Notifications generated by local mutations",
	}, []string{"type"})
)
