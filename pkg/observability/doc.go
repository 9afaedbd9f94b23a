// Package observability provides structured logging, Prometheus metrics,
// optional OpenTelemetry wiring, and graceful-shutdown helpers for the
// RoadPulse engine.
//
// # Logging
//
// The Logger wraps stdlib slog with a JSON handler and chainable context
// fields:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("location", key).Info("hotspot updated")
//
// # Metrics
//
// NewMetrics registers all engine metrics against a Prometheus registry:
// record throughput, persistence outcomes, store size, evictions, and
// per-backend replication and backup results.
//
// # Shutdown
//
// ShutdownManager coordinates signal handling, HTTP server drain, and
// registered shutdown functions (replication drain, OTel flush) under a
// single timeout.
package observability
