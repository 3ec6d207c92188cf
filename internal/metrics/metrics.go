package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 规则引擎指标，通过 /metrics 暴露
var (
	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_sweep_runs_total",
			Help: "Total number of sweep runs",
		},
		[]string{"sweep", "result"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cspulse_sweep_duration_seconds",
			Help:    "Sweep duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	sweepItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_sweep_item_errors_total",
			Help: "Per-entity failures recorded during sweeps",
		},
		[]string{"sweep"},
	)

	alertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_alerts_created_total",
			Help: "Alerts persisted after the dedup gate",
		},
		[]string{"alert_type"},
	)

	alertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_alerts_suppressed_total",
			Help: "Candidate alerts discarded by the dedup gate",
		},
		[]string{"alert_type"},
	)

	slaBreaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_sla_breaches_total",
			Help: "Tickets newly flagged as SLA breached",
		},
		[]string{"priority", "source"},
	)

	surveyTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_survey_transitions_total",
			Help: "Survey request state transitions",
		},
		[]string{"status"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cspulse_notification_intents_total",
			Help: "Notification intents emitted to the notifier",
		},
		[]string{"template", "result"},
	)
)

// ObserveSweep 记录一次批处理执行
func ObserveSweep(sweep string, elapsed time.Duration, itemErrors int, aborted bool) {
	result := "ok"
	switch {
	case aborted:
		result = "aborted"
	case itemErrors > 0:
		result = "partial"
	}
	sweepRuns.WithLabelValues(sweep, result).Inc()
	sweepDuration.WithLabelValues(sweep).Observe(elapsed.Seconds())
	if itemErrors > 0 {
		sweepItemErrors.WithLabelValues(sweep).Add(float64(itemErrors))
	}
}

func IncAlertCreated(alertType string) {
	alertsCreated.WithLabelValues(alertType).Inc()
}

func IncAlertSuppressed(alertType string) {
	alertsSuppressed.WithLabelValues(alertType).Inc()
}

// IncSLABreach source: sweep 或 resolution
func IncSLABreach(priority, source string) {
	if priority == "" {
		priority = "unknown"
	}
	slaBreaches.WithLabelValues(priority, source).Inc()
}

func AddSurveyTransitions(status string, n int) {
	if n <= 0 {
		return
	}
	surveyTransitions.WithLabelValues(status).Add(float64(n))
}

func IncNotification(template string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(template, result).Inc()
}
