package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AlertsChecked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptoalert_alerts_checked_total",
			Help: "Total number of alerts evaluated by the monitor",
		},
	)
	AlertsTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptoalert_alerts_triggered_total",
			Help: "Total number of alerts that produced a notification",
		},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cryptoalert_cycle_duration_seconds",
			Help:    "Duration of one poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoalert_cycle_errors_total",
			Help: "Errors raised while running poll cycles",
		},
		[]string{"stage"},
	)
	SkippedTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptoalert_skipped_ticks_total",
			Help: "Ticks dropped because a cycle was already running",
		},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoalert_notifications_total",
			Help: "Notification delivery attempts by status",
		},
		[]string{"status"},
	)
	CachedResources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptoalert_cached_resources",
			Help: "Number of resources held in the price cache",
		},
	)
	RetentionRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptoalert_retention_removed_total",
			Help: "Triggered one-shot alerts removed by retention",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AlertsChecked,
		AlertsTriggered,
		CycleDuration,
		CycleErrors,
		SkippedTicks,
		Notifications,
		CachedResources,
		RetentionRemoved,
	)
}
