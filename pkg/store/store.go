package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

const (
	// DefaultMaxBytes caps the serialized store document at 5 MiB.
	DefaultMaxBytes = 5 * 1024 * 1024

	DefaultMaxPatternsPerKey = 1000
	DefaultMaxRoutesPerKey   = 100

	// evictionRetries bounds how many evict-and-remeasure rounds one
	// persist cycle runs before giving up and writing oversized.
	evictionRetries = 3
)

// Config controls the bounded store.
type Config struct {
	// Path of the JSON document on disk.
	Path string

	// MaxBytes caps the serialized document size.
	MaxBytes int64

	MaxPatternsPerKey int
	MaxRoutesPerKey   int
}

// DefaultConfig returns the production defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		MaxBytes:          DefaultMaxBytes,
		MaxPatternsPerKey: DefaultMaxPatternsPerKey,
		MaxRoutesPerKey:   DefaultMaxRoutesPerKey,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxPatternsPerKey <= 0 {
		c.MaxPatternsPerKey = DefaultMaxPatternsPerKey
	}
	if c.MaxRoutesPerKey <= 0 {
		c.MaxRoutesPerKey = DefaultMaxRoutesPerKey
	}
}

// document is the on-disk shape of the store.
type document struct {
	TrafficPatterns   map[string][]*traffic.Pattern          `json:"trafficPatterns"`
	Hotspots          map[string]*traffic.Hotspot            `json:"hotspots"`
	AlternativeRoutes map[string][]*traffic.AlternativeRoute `json:"alternativeRoutes"`
	StoredData        map[string]*traffic.StoredAnalysis     `json:"storedData"`
	LastSaved         time.Time                              `json:"lastSaved"`
}

// Stats summarizes store occupancy for the stats endpoint.
type Stats struct {
	PatternKeys   int       `json:"patternKeys"`
	PatternCount  int       `json:"patternCount"`
	HotspotCount  int       `json:"hotspotCount"`
	RouteKeys     int       `json:"routeKeys"`
	RouteCount    int       `json:"routeCount"`
	AnalysisCount int       `json:"analysisCount"`
	SizeBytes     int64     `json:"sizeBytes"`
	MaxBytes      int64     `json:"maxBytes"`
	LastSaved     time.Time `json:"lastSaved"`
}

// Store is the single owner of the in-memory datasets. All mutation goes
// through Update, which persists on every call.
type Store struct {
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	state     *State
	version   uint64
	lastSaved time.Time
	sizeBytes int64
}

// Open loads the document at cfg.Path, tolerating a missing or corrupt
// file by starting empty. metrics may be nil.
func Open(cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	cfg.applyDefaults()
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	s := &Store{
		cfg:     cfg,
		logger:  logger.WithField("component", "store"),
		metrics: metrics,
		state:   NewState(),
	}

	s.load()
	return s, nil
}

// load reads the persisted document. Any failure leaves the store empty.
func (s *Store) load() {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("Could not read store file, starting empty")
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.WithError(err).Warn("Store file is corrupt, starting empty")
		return
	}

	st := NewState()
	if doc.TrafficPatterns != nil {
		st.Patterns = doc.TrafficPatterns
	}
	if doc.Hotspots != nil {
		st.Hotspots = doc.Hotspots
	}
	if doc.AlternativeRoutes != nil {
		st.Routes = doc.AlternativeRoutes
	}
	if doc.StoredData != nil {
		st.Analyses = doc.StoredData
	}

	s.state = st
	s.lastSaved = doc.LastSaved
	s.sizeBytes = int64(len(data))

	s.logger.WithFields(map[string]interface{}{
		"patterns": st.PatternCount(),
		"hotspots": len(st.Hotspots),
		"routes":   st.RouteCount(),
		"analyses": len(st.Analyses),
	}).Info("Loaded persisted store")
}

// Update applies fn to the state under the write lock, enforces per-key
// caps, and persists. Persistence failures are logged, never returned: the
// in-memory state stays authoritative and the next Update retries the
// write.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.state)
	s.version++
	s.enforceKeyCaps()
	s.persistLocked()
}

// Snapshot returns a deep copy of the current state together with its
// version. Readers never observe later mutations.
func (s *Store) Snapshot() (*State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), s.version
}

// AnalysisCount returns the number of stored analyses.
func (s *Store) AnalysisCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Analyses)
}

// ReplaceAll swaps in a whole new state (restore path) and persists it.
func (s *Store) ReplaceAll(st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st.Clone()
	s.version++
	s.enforceKeyCaps()
	s.persistLocked()
}

// Stats reports current occupancy.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		PatternKeys:   len(s.state.Patterns),
		PatternCount:  s.state.PatternCount(),
		HotspotCount:  len(s.state.Hotspots),
		RouteKeys:     len(s.state.Routes),
		RouteCount:    s.state.RouteCount(),
		AnalysisCount: len(s.state.Analyses),
		SizeBytes:     s.sizeBytes,
		MaxBytes:      s.cfg.MaxBytes,
		LastSaved:     s.lastSaved,
	}
}

// enforceKeyCaps trims per-key lists to their caps, dropping from the
// front so the newest entries survive.
func (s *Store) enforceKeyCaps() {
	for k, list := range s.state.Patterns {
		if over := len(list) - s.cfg.MaxPatternsPerKey; over > 0 {
			s.state.Patterns[k] = append([]*traffic.Pattern(nil), list[over:]...)
			s.countEvictions("patterns", over)
		}
	}
	for k, list := range s.state.Routes {
		if over := len(list) - s.cfg.MaxRoutesPerKey; over > 0 {
			s.state.Routes[k] = append([]*traffic.AlternativeRoute(nil), list[over:]...)
			s.countEvictions("routes", over)
		}
	}
}

// persistLocked serializes and writes the document, evicting and retrying
// while it exceeds the size cap. Callers hold the lock.
func (s *Store) persistLocked() {
	start := time.Now()

	data, err := s.marshalLocked()
	if err != nil {
		s.persistFailed(err)
		return
	}

	for attempt := 0; int64(len(data)) > s.cfg.MaxBytes && attempt < evictionRetries; attempt++ {
		dropped := s.evictOldestHalf()
		s.logger.WithFields(map[string]interface{}{
			"size":    len(data),
			"max":     s.cfg.MaxBytes,
			"dropped": dropped,
		}).Warn("Store over size cap, evicted oldest entries")

		if dropped == 0 {
			break
		}
		if data, err = s.marshalLocked(); err != nil {
			s.persistFailed(err)
			return
		}
	}

	tmp := s.cfg.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		s.persistFailed(err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.persistFailed(err)
		return
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		s.persistFailed(err)
		return
	}

	s.lastSaved = time.Now()
	s.sizeBytes = int64(len(data))

	if s.metrics != nil {
		s.metrics.PersistTotal.WithLabelValues("ok").Inc()
		s.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		s.metrics.StoreSizeBytes.Set(float64(s.sizeBytes))
		s.metrics.HotspotsTracked.Set(float64(len(s.state.Hotspots)))
	}
}

func (s *Store) persistFailed(err error) {
	s.logger.WithError(err).Error("Persist failed, in-memory state stays authoritative")
	if s.metrics != nil {
		s.metrics.PersistTotal.WithLabelValues("error").Inc()
	}
}

func (s *Store) marshalLocked() ([]byte, error) {
	doc := document{
		TrafficPatterns:   s.state.Patterns,
		Hotspots:          s.state.Hotspots,
		AlternativeRoutes: s.state.Routes,
		StoredData:        s.state.Analyses,
		LastSaved:         time.Now(),
	}
	return json.Marshal(doc)
}

// evictOldestHalf drops the oldest 50% of patterns and routes per key and
// of analyses overall, ranked by timestamp. Hotspot aggregates are exempt.
// Returns the number of entries dropped.
func (s *Store) evictOldestHalf() int {
	var dropped int

	for k, list := range s.state.Patterns {
		if len(list) < 2 {
			continue
		}
		sorted := append([]*traffic.Pattern(nil), list...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		keepFrom := len(sorted) / 2
		s.state.Patterns[k] = sorted[keepFrom:]
		dropped += keepFrom
		s.countEvictions("patterns", keepFrom)
	}

	for k, list := range s.state.Routes {
		if len(list) < 2 {
			continue
		}
		sorted := append([]*traffic.AlternativeRoute(nil), list...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		keepFrom := len(sorted) / 2
		s.state.Routes[k] = sorted[keepFrom:]
		dropped += keepFrom
		s.countEvictions("routes", keepFrom)
	}

	if len(s.state.Analyses) >= 2 {
		all := make([]*traffic.StoredAnalysis, 0, len(s.state.Analyses))
		for _, a := range s.state.Analyses {
			all = append(all, a)
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].Timestamp.Before(all[j].Timestamp)
		})
		for _, old := range all[:len(all)/2] {
			delete(s.state.Analyses, old.ID)
			dropped++
		}
		s.countEvictions("analyses", len(all)/2)
	}

	return dropped
}

func (s *Store) countEvictions(section string, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.EvictionsTotal.WithLabelValues(section).Add(float64(n))
	}
}
