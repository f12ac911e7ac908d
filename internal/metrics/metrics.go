package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopunto_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecopunto_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// WebSocket
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecopunto_ws_connected_clients",
			Help: "Currently connected container stream subscribers",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopunto_ws_messages_sent_total",
			Help: "Messages queued to stream subscribers by type",
		},
		[]string{"type"},
	)

	// Simulation
	SimulationTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecopunto_simulation_ticks_total",
			Help: "Fill-level simulation ticks processed",
		},
	)

	FillLevelChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecopunto_fill_level_changes_total",
			Help: "Container fill levels changed by the simulation",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecopunto_notifications_created_total",
			Help: "Container-full notifications created",
		},
	)

	// Push
	PushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopunto_push_sends_total",
			Help: "Push notification attempts by result (sent, failed, rejected)",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
