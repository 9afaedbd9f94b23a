package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	PatternsRecordedTotal *prometheus.CounterVec
	RoutesRecordedTotal   prometheus.Counter

	// Store metrics
	PersistTotal    *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	StoreSizeBytes  prometheus.Gauge
	EvictionsTotal  *prometheus.CounterVec
	HotspotsTracked prometheus.Gauge

	// Replication metrics
	ReplicationTotal *prometheus.CounterVec
	BackupTotal      *prometheus.CounterVec
	BackupDuration   prometheus.Histogram

	// Analytics metrics
	AnalyticsCacheHitsTotal   *prometheus.CounterVec
	AnalyticsCacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roadpulse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		PatternsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_patterns_recorded_total",
				Help: "Total number of traffic patterns folded into the store",
			},
			[]string{"severity"},
		),
		RoutesRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roadpulse_routes_recorded_total",
				Help: "Total number of alternative routes recorded",
			},
		),

		PersistTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_persist_total",
				Help: "Total number of local persistence attempts",
			},
			[]string{"status"},
		),
		PersistDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roadpulse_persist_duration_seconds",
				Help:    "Local persistence cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		StoreSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "roadpulse_store_size_bytes",
				Help: "Serialized size of the local store in bytes",
			},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_evictions_total",
				Help: "Total number of entries dropped by storage-cap eviction",
			},
			[]string{"section"},
		),
		HotspotsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "roadpulse_hotspots_tracked",
				Help: "Number of hotspot aggregates currently tracked",
			},
		),

		ReplicationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_replication_total",
				Help: "Total number of per-event replication attempts",
			},
			[]string{"backend", "record", "status"},
		),
		BackupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_backup_total",
				Help: "Total number of consolidated backup uploads",
			},
			[]string{"backend", "status"},
		),
		BackupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roadpulse_backup_duration_seconds",
				Help:    "Consolidated backup build-and-upload duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),

		AnalyticsCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_analytics_cache_hits_total",
				Help: "Total number of analytics cache hits",
			},
			[]string{"cache_type"},
		),
		AnalyticsCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roadpulse_analytics_cache_misses_total",
				Help: "Total number of analytics cache misses",
			},
			[]string{"cache_type"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PatternsRecordedTotal,
		m.RoutesRecordedTotal,
		m.PersistTotal,
		m.PersistDuration,
		m.StoreSizeBytes,
		m.EvictionsTotal,
		m.HotspotsTracked,
		m.ReplicationTotal,
		m.BackupTotal,
		m.BackupDuration,
		m.AnalyticsCacheHitsTotal,
		m.AnalyticsCacheMissesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
