package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution engine metrics
var (
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trainbox_sessions_active",
			Help: "Number of currently active execution sessions",
		},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trainbox_execution_duration_seconds",
			Help:    "Wall-clock time of a script execution",
			Buckets: []float64{0.1, 1, 10, 60, 300, 1800, 3600, 7200},
		},
		[]string{"status"},
	)

	OutputLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trainbox_output_lines_total",
			Help: "Total child output lines forwarded to the sinks",
		},
	)

	HeartbeatsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trainbox_heartbeats_total",
			Help: "Total keepalive messages sent on live channels",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		ExecutionDuration,
		OutputLines,
		HeartbeatsSent,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
