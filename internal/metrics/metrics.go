package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Timer Metrics
	TimerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_timer_operations_total",
			Help: "Timer operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	TimersClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worktrack_timers_closed_total",
			Help: "Active entries closed by stop, stop-all or a superseding start",
		},
	)

	// KPI Metrics
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worktrack_report_generation_seconds",
			Help:    "Duration of KPI report generation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"period", "outcome"},
	)

	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_scheduler_org_runs_total",
			Help: "Scheduled report generations per organization by period and outcome",
		},
		[]string{"period", "outcome"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktrack_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worktrack_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktrack_websocket_connections",
			Help: "Open websocket connections",
		},
	)
)

// Outcome labels an operation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordTimerOp counts a timer operation.
func RecordTimerOp(operation string, err error) {
	TimerOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// ObserveReport records how long a report took to generate.
func ObserveReport(period string, start time.Time, err error) {
	ReportDuration.WithLabelValues(period, Outcome(err)).Observe(time.Since(start).Seconds())
}
