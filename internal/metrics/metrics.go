// Package metrics provides Prometheus instrumentation for the paper ledger.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesRecorded counts trades appended to the ledger, partitioned by side.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trades_recorded_total",
		Help: "Total number of paper trades recorded",
	}, []string{"side"})

	// UnmatchedSells counts SELL trades that found no open position.
	UnmatchedSells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_unmatched_sells_total",
		Help: "SELL trades recorded without an open position",
	})

	// RecordLatency tracks the full load-mutate-save cycle.
	RecordLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_record_latency_seconds",
		Help:    "Trade recording latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// OpenPositions tracks the number of open positions after the last mutation.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_open_positions",
		Help: "Number of currently open paper positions",
	})

	// RealizedPnL tracks lifetime realized PnL in USD.
	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_realized_pnl_usd",
		Help: "Lifetime realized profit and loss in USD",
	})

	// StoreLoadFailures counts loads that fell back to a fresh ledger
	// because the stored document could not be read.
	StoreLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_store_load_failures_total",
		Help: "Ledger loads that failed and were replaced by a fresh ledger",
	})

	// StoreSaveFailures counts saves that failed and were dropped.
	StoreSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_store_save_failures_total",
		Help: "Ledger saves that failed",
	})

	// QuoteLookups counts market quote lookups by result ("ok", "fallback").
	QuoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_quote_lookups_total",
		Help: "Best-bid lookups for open positions",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

		// Use the route pattern for the path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
