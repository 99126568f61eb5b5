// Package metrics provides Prometheus instrumentation for the wager book.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WagersTotal counts accepted wagers, partitioned by kind
	// (plain, fixed, rate).
	WagersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_wagers_total",
		Help: "Total number of wagers accepted",
	}, []string{"kind"})

	// WagersRejected counts wagers rejected as duplicates or over limits.
	WagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_wagers_rejected_total",
		Help: "Wagers rejected, partitioned by reason",
	}, []string{"reason"})

	// ScenariosSettled counts closed scenarios by outcome.
	ScenariosSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_scenarios_settled_total",
		Help: "Scenarios settled, partitioned by outcome",
	}, []string{"outcome"})

	// OpenScenarios tracks the number of scenarios still open.
	OpenScenarios = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerbook_open_scenarios",
		Help: "Number of currently open scenarios",
	})

	// TreasuryCents tracks the treasury balance in cents.
	TreasuryCents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerbook_treasury_cents",
		Help: "Treasury balance in cents",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerbook_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerbook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
