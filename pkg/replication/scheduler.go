package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

const (
	DefaultWorkers                = 4
	DefaultAttemptTimeout         = 30 * time.Second
	DefaultBackupInterval         = 6 * time.Hour
	DefaultStartupBackupDelay     = 30 * time.Second
	DefaultStartupBackupThreshold = 10
	DefaultDrainTimeout           = 10 * time.Second
)

// Config controls the replication scheduler.
type Config struct {
	// Workers sizes the replication pool.
	Workers int

	// AttemptTimeout bounds every remote call; an attempt past it is
	// abandoned and logged.
	AttemptTimeout time.Duration

	// BackupInterval is the period of the consolidated backup job.
	BackupInterval time.Duration

	// StartupBackupDelay is how long after Start the one-shot startup
	// backup fires, provided the store already holds more than
	// StartupBackupThreshold analyses.
	StartupBackupDelay     time.Duration
	StartupBackupThreshold int

	// DrainTimeout bounds how long Stop waits for in-flight work.
	DrainTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:                DefaultWorkers,
		AttemptTimeout:         DefaultAttemptTimeout,
		BackupInterval:         DefaultBackupInterval,
		StartupBackupDelay:     DefaultStartupBackupDelay,
		StartupBackupThreshold: DefaultStartupBackupThreshold,
		DrainTimeout:           DefaultDrainTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.BackupInterval <= 0 {
		c.BackupInterval = DefaultBackupInterval
	}
	if c.StartupBackupDelay <= 0 {
		c.StartupBackupDelay = DefaultStartupBackupDelay
	}
	if c.StartupBackupThreshold <= 0 {
		c.StartupBackupThreshold = DefaultStartupBackupThreshold
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
}

// Event carries the records produced by one write. Nil fields are skipped.
type Event struct {
	Pattern  *traffic.Pattern
	Hotspot  *traffic.Hotspot
	Route    *traffic.AlternativeRoute
	Analysis *traffic.StoredAnalysis
}

// StateSource is the read side of the local store the scheduler backs up.
type StateSource interface {
	Snapshot() (*store.State, uint64)
	AnalysisCount() int
}

// BackupRecord remembers one completed artifact upload.
type BackupRecord struct {
	Backend   string              `json:"backend"`
	Ref       UploadRef           `json:"ref"`
	SizeBytes int                 `json:"sizeBytes"`
	Stats     store.ArtifactStats `json:"stats"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Scheduler owns per-event fan-out and the periodic backup job.
type Scheduler struct {
	cfg      Config
	source   StateSource
	backends []Backend
	archives []ArchiveBackend
	pool     *WorkerPool
	cron     *cron.Cron
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu           sync.Mutex
	lastBackups  []BackupRecord
	startupTimer *time.Timer
	started      bool
}

// NewScheduler wires a scheduler over the given backends. Either slice may
// be empty; metrics may be nil.
func NewScheduler(cfg Config, source StateSource, backends []Backend, archives []ArchiveBackend, logger *observability.Logger, metrics *observability.Metrics) *Scheduler {
	cfg.applyDefaults()

	return &Scheduler{
		cfg:      cfg,
		source:   source,
		backends: backends,
		archives: archives,
		pool:     NewWorkerPool(context.Background(), cfg.Workers, "replication", cfg.AttemptTimeout, logger),
		cron:     cron.New(),
		logger:   logger.WithField("component", "replication"),
		metrics:  metrics,
	}
}

// Start schedules the periodic backup job and the one-shot startup backup.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	spec := fmt.Sprintf("@every %s", s.cfg.BackupInterval)
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunBackup(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled backup failed")
		}
	}); err != nil {
		return fmt.Errorf("scheduling backup job: %w", err)
	}

	s.startupTimer = time.AfterFunc(s.cfg.StartupBackupDelay, func() {
		if s.source.AnalysisCount() <= s.cfg.StartupBackupThreshold {
			s.logger.Debug("Skipping startup backup, store below threshold")
			return
		}
		if _, err := s.RunBackup(context.Background()); err != nil {
			s.logger.WithError(err).Error("Startup backup failed")
		}
	})

	s.cron.Start()
	s.started = true
	s.logger.WithField("interval", s.cfg.BackupInterval.String()).Info("Replication scheduler started")
	return nil
}

// Enqueue schedules per-event replication of the records in ev to every
// configured backend. It never blocks on remote calls and never returns an
// error to the write path; a full or stopped pool just drops the event
// with a log line.
func (s *Scheduler) Enqueue(ev Event) {
	for _, b := range s.backends {
		backend := b
		err := s.pool.TrySubmit(func(ctx context.Context) error {
			s.replicateEvent(ctx, backend, ev)
			return nil
		})
		if err != nil {
			s.logger.WithField("backend", backend.Name()).WithError(err).Warn("Dropped replication event")
		}
	}
}

// replicateEvent pushes each record independently: one record failing must
// not stop the others.
func (s *Scheduler) replicateEvent(ctx context.Context, backend Backend, ev Event) {
	if ev.Pattern != nil {
		s.attempt(backend.Name(), "pattern", backend.UpsertPattern(ctx, ev.Pattern))
	}
	if ev.Hotspot != nil {
		s.attempt(backend.Name(), "hotspot", backend.UpsertHotspot(ctx, ev.Hotspot))
	}
	if ev.Route != nil {
		s.attempt(backend.Name(), "route", backend.UpsertRoute(ctx, ev.Route))
	}
	if ev.Analysis != nil {
		s.attempt(backend.Name(), "analysis", backend.UpsertAnalysis(ctx, ev.Analysis))
	}
}

func (s *Scheduler) attempt(backend, record string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.WithFields(map[string]interface{}{
			"backend": backend,
			"record":  record,
		}).WithError(err).Warn("Replication attempt failed")
	}
	if s.metrics != nil {
		s.metrics.ReplicationTotal.WithLabelValues(backend, record, status).Inc()
	}
}

// RunBackup builds one consolidated artifact from the current snapshot and
// uploads it to every archive backend concurrently. Backends fail
// independently; the returned error aggregates any failures.
func (s *Scheduler) RunBackup(ctx context.Context) ([]BackupRecord, error) {
	if len(s.archives) == 0 {
		return nil, nil
	}

	start := time.Now()
	snapshot, version := s.source.Snapshot()
	artifact := store.NewArtifact(snapshot, time.Now())
	data, err := artifact.Encode()
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"version": version,
		"size":    len(data),
	}).Info("Uploading consolidated backup")

	var mu sync.Mutex
	var records []BackupRecord

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range s.archives {
		archive := a
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(gctx, s.cfg.AttemptTimeout)
			defer cancel()

			ref, err := archive.Upload(uctx, data)
			if err != nil {
				s.countBackup(archive.Name(), "error")
				s.logger.WithField("backend", archive.Name()).WithError(err).Error("Backup upload failed")
				return fmt.Errorf("%s: %w", archive.Name(), err)
			}

			rec := BackupRecord{
				Backend:   archive.Name(),
				Ref:       ref,
				SizeBytes: len(data),
				Stats:     artifact.Stats,
				CreatedAt: time.Now(),
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()

			s.countBackup(archive.Name(), "ok")
			s.logger.WithFields(map[string]interface{}{
				"backend": archive.Name(),
				"hash":    ref.ContentHash,
			}).Info("Backup uploaded")
			return nil
		})
	}

	err = g.Wait()

	if s.metrics != nil {
		s.metrics.BackupDuration.Observe(time.Since(start).Seconds())
	}

	s.mu.Lock()
	s.lastBackups = append([]BackupRecord(nil), records...)
	s.mu.Unlock()

	return records, err
}

func (s *Scheduler) countBackup(backend, status string) {
	if s.metrics != nil {
		s.metrics.BackupTotal.WithLabelValues(backend, status).Inc()
	}
}

// LastBackups returns the records of the most recent backup run.
func (s *Scheduler) LastBackups() []BackupRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BackupRecord(nil), s.lastBackups...)
}

// FetchBackup downloads and decodes an artifact from the named archive
// backend.
func (s *Scheduler) FetchBackup(ctx context.Context, backendName, contentHash string) (*store.Artifact, error) {
	for _, a := range s.archives {
		if a.Name() != backendName {
			continue
		}
		data, err := a.Download(ctx, contentHash)
		if err != nil {
			return nil, fmt.Errorf("downloading backup from %s: %w", backendName, err)
		}
		return store.DecodeArtifact(data)
	}
	return nil, fmt.Errorf("unknown archive backend %q", backendName)
}

// Stop halts the cron job and the startup timer and drains the pool for up
// to DrainTimeout. In-flight uploads past the drain window are abandoned.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.startupTimer != nil {
		s.startupTimer.Stop()
	}
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
	return s.pool.Shutdown(s.cfg.DrainTimeout)
}
