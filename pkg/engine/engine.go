package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roadpulse/roadpulse/pkg/analytics"
	"github.com/roadpulse/roadpulse/pkg/hotspots"
	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/replication"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// Engine is the single owner of the traffic dataset.
type Engine struct {
	extractor *traffic.Extractor
	store     *store.Store
	analytics *analytics.Service
	scheduler *replication.Scheduler
	logger    *observability.Logger
	metrics   *observability.Metrics

	now func() time.Time
}

// New assembles an engine. scheduler and metrics may be nil; a nil
// scheduler disables replication entirely.
func New(extractor *traffic.Extractor, st *store.Store, svc *analytics.Service, scheduler *replication.Scheduler, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		extractor: extractor,
		store:     st,
		analytics: svc,
		scheduler: scheduler,
		logger:    logger.WithField("component", "engine"),
		metrics:   metrics,
		now:       time.Now,
	}
}

func validateLocation(loc traffic.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", loc.Longitude)
	}
	return nil
}

// RecordAnalysis is the sole write path: one call per completed analysis.
// It extracts the pattern, folds the hotspot, stores the raw pair, and
// enqueues replication. Replication and persistence failures never fail
// the call.
func (e *Engine) RecordAnalysis(ctx context.Context, obs traffic.Observation, res traffic.AnalysisResult) (*traffic.Pattern, error) {
	if err := validateLocation(obs.Location); err != nil {
		return nil, err
	}

	ts := e.now()
	pattern := e.extractor.Extract(obs, res, ts)
	analysis := &traffic.StoredAnalysis{
		ID:          uuid.New().String(),
		Observation: obs,
		Result:      res,
		Timestamp:   ts,
	}

	var updatedHotspot *traffic.Hotspot
	key := pattern.Key()
	e.store.Update(func(st *store.State) {
		st.Patterns[key] = append(st.Patterns[key], pattern)

		if existing, ok := st.Hotspots[key]; ok {
			hotspots.Fold(existing, pattern)
			updatedHotspot = existing.Clone()
		} else {
			created := hotspots.New(pattern)
			st.Hotspots[key] = created
			updatedHotspot = created.Clone()
		}

		st.Analyses[analysis.ID] = analysis
	})

	if e.metrics != nil {
		e.metrics.PatternsRecordedTotal.WithLabelValues(string(pattern.Severity)).Inc()
	}
	e.logger.WithFields(map[string]interface{}{
		"location": key,
		"severity": string(pattern.Severity),
	}).Debug("Recorded analysis")

	if e.scheduler != nil {
		e.scheduler.Enqueue(replication.Event{
			Pattern:  pattern,
			Hotspot:  updatedHotspot,
			Analysis: analysis,
		})
	}

	return pattern, nil
}

// RecordRoute appends one alternative route suggestion for the endpoint
// pair.
func (e *Engine) RecordRoute(ctx context.Context, origin, destination traffic.Location, description string) (*traffic.AlternativeRoute, error) {
	if err := validateLocation(origin); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := validateLocation(destination); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	route := &traffic.AlternativeRoute{
		ID:          uuid.New().String(),
		Origin:      origin,
		Destination: destination,
		Description: description,
		Timestamp:   e.now(),
	}

	key := route.Key()
	e.store.Update(func(st *store.State) {
		st.Routes[key] = append(st.Routes[key], route)
	})

	if e.metrics != nil {
		e.metrics.RoutesRecordedTotal.Inc()
	}

	if e.scheduler != nil {
		e.scheduler.Enqueue(replication.Event{Route: route})
	}

	return route, nil
}

// Analytics answers the report query, optionally narrowed to one location
// key.
func (e *Engine) Analytics(ctx context.Context, locationKey string) *analytics.Report {
	return e.analytics.Report(ctx, locationKey)
}

// NearbyHotspots returns hotspots within radiusKm of center, closest
// first.
func (e *Engine) NearbyHotspots(center traffic.Location, radiusKm float64) []analytics.NearbyHotspot {
	return e.analytics.NearbyHotspots(center, radiusKm)
}

// BestRoutes returns recorded routes between the endpoints, newest first.
func (e *Engine) BestRoutes(origin, destination traffic.Location) []*traffic.AlternativeRoute {
	return e.analytics.BestRoutes(origin, destination)
}

// ExportAll serializes the whole dataset into one backup artifact.
func (e *Engine) ExportAll() ([]byte, error) {
	snapshot, _ := e.store.Snapshot()
	return store.NewArtifact(snapshot, e.now()).Encode()
}

// ImportAll replaces the whole dataset from a backup artifact. A
// malformed or version-mismatched artifact returns an error wrapping
// store.ErrFormat and leaves current state untouched.
func (e *Engine) ImportAll(data []byte) error {
	artifact, err := store.DecodeArtifact(data)
	if err != nil {
		return err
	}

	e.store.ReplaceAll(artifact.State())
	e.logger.WithFields(map[string]interface{}{
		"patterns": artifact.Stats.PatternCount,
		"hotspots": artifact.Stats.HotspotCount,
	}).Info("Imported backup artifact")
	return nil
}

// StorageStats reports local store occupancy.
func (e *Engine) StorageStats() store.Stats {
	return e.store.Stats()
}

// Backup triggers a consolidated backup run immediately.
func (e *Engine) Backup(ctx context.Context) ([]replication.BackupRecord, error) {
	if e.scheduler == nil {
		return nil, nil
	}
	return e.scheduler.RunBackup(ctx)
}

// LastBackups reports the records of the most recent backup run.
func (e *Engine) LastBackups() []replication.BackupRecord {
	if e.scheduler == nil {
		return nil
	}
	return e.scheduler.LastBackups()
}

// Close stops the replication scheduler. In-flight uploads past the drain
// window are abandoned.
func (e *Engine) Close() error {
	if e.scheduler == nil {
		return nil
	}
	return e.scheduler.Stop()
}
