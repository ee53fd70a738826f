// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WorkerStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchkeeper_worker_starts_total",
			Help: "Worker start attempts by reason and result.",
		},
		[]string{"reason", "result"},
	)
	WorkerExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchkeeper_worker_exits_total",
			Help: "Worker exits, split by whether the supervisor requested them.",
		},
		[]string{"expected"},
	)
	WorkerUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchkeeper_worker_up",
			Help: "1 while the worker process is running.",
		},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchkeeper_notifications_total",
			Help: "Notification delivery attempts by status kind, channel and result.",
		},
		[]string{"kind", "channel", "result"},
	)
	NotificationsThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchkeeper_notifications_throttled_total",
			Help: "Notifications dropped inside the throttle window.",
		},
		[]string{"kind"},
	)
	UpdateChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchkeeper_update_checks_total",
			Help: "Update checks by trigger and result.",
		},
		[]string{"trigger", "result"},
	)
	LogDroppedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchkeeper_log_dropped_chunks_total",
			Help: "Output chunks dropped because the log writer fell behind.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WorkerStarts,
		WorkerExits,
		WorkerUp,
		Notifications,
		NotificationsThrottled,
		UpdateChecks,
		LogDroppedChunks,
	)
}
