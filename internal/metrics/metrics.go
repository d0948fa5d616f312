package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NotificationsProcessed counts per-candidate dispatch outcomes by
// trigger kind and outcome status (sent, skipped, error).
var NotificationsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_processed_total",
		Help: "Dispatch outcomes per trigger kind and status",
	},
	[]string{"kind", "status"},
)

// RunsTotal counts trigger runs by kind and result (ok, fatal).
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_runs_total",
		Help: "Trigger runs per kind and result",
	},
	[]string{"kind", "result"},
)
