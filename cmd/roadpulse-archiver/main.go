package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/roadpulse/roadpulse/pkg/config"
	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/replication"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

var (
	schedule       = flag.String("schedule", "0 */6 * * *", "Cron schedule for backups (default: every 6 hours)")
	runOnce        = flag.Bool("run-once", false, "Run one backup and exit")
	restoreBackend = flag.String("restore-backend", "", "Archive backend to restore from (used with --restore)")
	restoreHash    = flag.String("restore", "", "Content hash of the backup to restore into the local store")
	nearby         = flag.String("nearby", "", "Query the Postgres mirror for hotspots near \"lat,lng\" and exit")
	nearbyRadius   = flag.Float64("radius-km", 10, "Search radius for --nearby in kilometers")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	ctx := context.Background()

	// Mirror inspection mode: query the central Postgres mirror directly,
	// no store or archive needed.
	if *nearby != "" {
		if !cfg.Backends.PostgresEnabled() {
			log.Fatal("ROADPULSE_POSTGRES_URL is required for --nearby")
		}
		var lat, lng float64
		if _, err := fmt.Sscanf(*nearby, "%f,%f", &lat, &lng); err != nil {
			log.Fatalf("Invalid --nearby %q, want \"lat,lng\": %v", *nearby, err)
		}

		backend, err := replication.OpenPostgresBackend(cfg.Backends.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to open Postgres mirror: %v", err)
		}
		defer backend.Close()

		center := traffic.Location{Latitude: lat, Longitude: lng}
		hotspots, err := backend.NearbyHotspots(ctx, replication.BoxAround(center, *nearbyRadius))
		if err != nil {
			log.Fatalf("Nearby query failed: %v", err)
		}

		found := 0
		for _, h := range hotspots {
			d := traffic.Haversine(center, h.Location)
			if d > *nearbyRadius {
				continue
			}
			found++
			logger.Infof("%s: %.1f km away, %.1f%% congestion over %d data points",
				h.Key(), d, h.AverageCongestion, h.DataPoints)
		}
		logger.Infof("%d hotspots within %.1f km of %.4f,%.4f", found, *nearbyRadius, lat, lng)
		return
	}

	if !cfg.Backends.S3Enabled() {
		log.Fatal("ROADPULSE_S3_BUCKET is required: the archiver has nothing to do without an archive")
	}
	obsLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	st, err := store.Open(cfg.Store, obsLogger, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	archive, err := replication.NewS3Archive(ctx, cfg.Backends.S3Config())
	if err != nil {
		log.Fatalf("Failed to initialize S3 archive: %v", err)
	}

	scheduler := replication.NewScheduler(cfg.Replication, st,
		nil, []replication.ArchiveBackend{archive}, obsLogger, nil)

	// Restore mode
	if *restoreHash != "" {
		backendName := *restoreBackend
		if backendName == "" {
			backendName = archive.Name()
		}

		logger.Infof("Restoring backup %s from %s", *restoreHash, backendName)
		artifact, err := scheduler.FetchBackup(ctx, backendName, *restoreHash)
		if err != nil {
			log.Fatalf("Restore failed: %v", err)
		}

		st.ReplaceAll(artifact.State())
		stats := st.Stats()
		logger.Infof("Restore complete: %d patterns, %d hotspots, %d analyses",
			stats.PatternCount, stats.HotspotCount, stats.AnalysisCount)
		return
	}

	// Run once mode (for testing or manual backups)
	if *runOnce {
		records, err := scheduler.RunBackup(ctx)
		if err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
		for _, rec := range records {
			logger.Infof("Backup uploaded to %s: %s (%d bytes)", rec.Backend, rec.Ref.TxRef, rec.SizeBytes)
		}
		logger.Info("Backup completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		logger.Info("Starting scheduled backup")
		records, err := scheduler.RunBackup(context.Background())
		if err != nil {
			logger.Errorf("Scheduled backup failed: %v", err)
			return
		}
		for _, rec := range records {
			logger.Infof("Backup uploaded to %s: %s (%d bytes)", rec.Backend, rec.Ref.TxRef, rec.SizeBytes)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule backups: %v", err)
	}

	c.Start()
	logger.Infof("Roadpulse archiver started, schedule: %s", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down gracefully...")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	logger.Info("Archiver stopped")
}
