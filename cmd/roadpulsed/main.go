package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roadpulse/roadpulse/pkg/analytics"
	"github.com/roadpulse/roadpulse/pkg/api"
	"github.com/roadpulse/roadpulse/pkg/config"
	"github.com/roadpulse/roadpulse/pkg/engine"
	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/replication"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", cfg.Observability.OTelServiceVersion).Info("Starting roadpulse")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ctx := context.Background()

	// OpenTelemetry (optional)
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry, continuing without tracing")
	}

	// Holiday calendar
	calendar := traffic.NewCalendar()
	calendarStop := make(chan struct{})
	if cfg.CalendarPath != "" {
		calendar, err = traffic.LoadCalendar(cfg.CalendarPath)
		if err != nil {
			log.Fatalf("Failed to load holiday calendar: %v", err)
		}
		// Watch blocks until the watcher fails or calendarStop closes.
		go func() {
			if err := calendar.Watch(cfg.CalendarPath, calendarStop, func(err error) {
				logger.WithError(err).Warn("Holiday calendar reload failed")
			}); err != nil {
				logger.WithError(err).Warn("Holiday calendar watch unavailable")
			}
		}()
	}

	// Local bounded store
	st, err := store.Open(cfg.Store, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	logger.WithField("path", cfg.Store.Path).Info("Store opened")

	// Replication backends (all optional)
	var backends []replication.Backend
	var archives []replication.ArchiveBackend

	if cfg.Backends.PostgresEnabled() {
		pg, err := replication.OpenPostgresBackend(cfg.Backends.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to postgres backend: %v", err)
		}
		defer pg.Close()
		backends = append(backends, pg)
		logger.Info("Postgres replication backend enabled")
	}

	if cfg.Backends.S3Enabled() {
		archive, err := replication.NewS3Archive(ctx, cfg.Backends.S3Config())
		if err != nil {
			log.Fatalf("Failed to initialize S3 archive: %v", err)
		}
		archives = append(archives, archive)
		logger.WithField("bucket", cfg.Backends.S3Bucket).Info("S3 backup archive enabled")
	}

	scheduler := replication.NewScheduler(cfg.Replication, st, backends, archives, logger, metrics)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start replication scheduler: %v", err)
	}

	// Analytics cache (Redis optional)
	var analyticsService *analytics.Service
	if cfg.Backends.RedisEnabled() {
		redisClient, err := analytics.OpenRedis(cfg.Backends.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		analyticsService = analytics.NewService(st, redisClient, logger, metrics)
		logger.Info("Redis analytics cache enabled")
	} else {
		analyticsService = analytics.NewService(st, nil, logger, metrics)
	}

	eng := engine.New(traffic.NewExtractor(calendar), st, analyticsService, scheduler, logger, metrics)

	// API server
	apiServer := api.NewServer(eng, logger, metrics)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	health := observability.NewHealth()
	healthMux := http.NewServeMux()
	health.Register(healthMux)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdownMgr := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdownMgr.RegisterShutdownFunc(func(ctx context.Context) error {
		health.SetReady(false)
		close(calendarStop)
		return healthServer.Shutdown(ctx)
	})
	shutdownMgr.RegisterShutdownFunc(func(ctx context.Context) error {
		return eng.Close()
	})
	if otelProviders != nil {
		shutdownMgr.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health/metrics server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	// Give the listeners a moment before reporting ready.
	time.AfterFunc(100*time.Millisecond, func() { health.SetReady(true) })

	if err := shutdownMgr.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
