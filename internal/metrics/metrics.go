// Package metrics holds the prometheus collectors for the monitoring engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_ticks_total",
			Help: "Total monitoring ticks completed, by verdict",
		},
		[]string{"verdict"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focus_tick_duration_seconds",
			Help:    "Duration of one capture/analyze tick in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Analysis metrics
	AnalysisAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_analysis_attempts_total",
			Help: "Model inference attempts, by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_analysis_fallbacks_total",
			Help: "Heuristic fallbacks taken, by reason",
		},
		[]string{"reason"},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focus_active_sessions",
			Help: "Number of active monitoring sessions",
		},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_notifications_total",
			Help: "OS notifications attempted, by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		AnalysisAttempts,
		AnalysisFallbacks,
		ActiveSessions,
		NotificationsTotal,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
