package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors. They are registered on
// the registry passed in by the caller so tests can use isolated registries.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec
	UploadsTotal      *prometheus.CounterVec
	TranscodesTotal   *prometheus.CounterVec
	DroppedClients    prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Number of open websocket connections",
		}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages appended to history by type",
		}, []string{"type"}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_uploads_total",
			Help: "Out-of-band uploads accepted by media kind",
		}, []string{"kind"}),
		TranscodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_transcodes_total",
			Help: "Video transcode attempts by outcome",
		}, []string{"outcome"}),
		DroppedClients: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_dropped_clients_total",
			Help: "Clients dropped because their send buffer filled up",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),
	}
}

// statusRecorder captures the response status for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per method and route. The
// chi route pattern is used rather than the raw URL path so blob requests
// collapse into one label value instead of one per file.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
