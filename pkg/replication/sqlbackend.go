package replication

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// schema works on both PostgreSQL and SQLite so the backend can be tested
// against an in-memory database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS traffic_patterns (
		id TEXT PRIMARY KEY,
		location_key TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		severity TEXT NOT NULL,
		congestion_level DOUBLE PRECISION NOT NULL,
		average_speed DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		observed_at TIMESTAMP NOT NULL,
		payload TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patterns_location ON traffic_patterns (location_key)`,
	`CREATE TABLE IF NOT EXISTS traffic_hotspots (
		location_key TEXT PRIMARY KEY,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		data_points INTEGER NOT NULL,
		average_congestion DOUBLE PRECISION NOT NULL,
		frequency DOUBLE PRECISION NOT NULL,
		payload TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alternative_routes (
		id TEXT PRIMARY KEY,
		route_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_key ON alternative_routes (route_key)`,
	`CREATE TABLE IF NOT EXISTS stored_analyses (
		id TEXT PRIMARY KEY,
		location_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`,
}

// SQLBackend replicates records into a relational database through
// database/sql. Production runs it against PostgreSQL via lib/pq.
type SQLBackend struct {
	name string
	db   *sql.DB
}

// NewSQLBackend wraps an open database handle and ensures the schema
// exists.
func NewSQLBackend(name string, db *sql.DB) (*SQLBackend, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating replication schema: %w", err)
		}
	}
	return &SQLBackend{name: name, db: db}, nil
}

// OpenPostgresBackend connects to PostgreSQL and returns a backend named
// "postgres".
func OpenPostgresBackend(url string) (*SQLBackend, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return NewSQLBackend("postgres", db)
}

func (b *SQLBackend) Name() string { return b.name }

// Close releases the underlying database handle.
func (b *SQLBackend) Close() error { return b.db.Close() }

func (b *SQLBackend) UpsertPattern(ctx context.Context, p *traffic.Pattern) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling pattern: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO traffic_patterns
			(id, location_key, latitude, longitude, severity, congestion_level, average_speed, confidence, observed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			severity = EXCLUDED.severity,
			congestion_level = EXCLUDED.congestion_level,
			average_speed = EXCLUDED.average_speed,
			confidence = EXCLUDED.confidence,
			payload = EXCLUDED.payload`,
		p.ID, p.Key(), p.Location.Latitude, p.Location.Longitude, string(p.Severity),
		p.CongestionLevel, p.AverageSpeed, p.Confidence, p.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("upserting pattern %s: %w", p.ID, err)
	}
	return nil
}

func (b *SQLBackend) UpsertHotspot(ctx context.Context, h *traffic.Hotspot) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling hotspot: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO traffic_hotspots
			(location_key, latitude, longitude, data_points, average_congestion, frequency, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (location_key) DO UPDATE SET
			data_points = EXCLUDED.data_points,
			average_congestion = EXCLUDED.average_congestion,
			frequency = EXCLUDED.frequency,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		h.Key(), h.Location.Latitude, h.Location.Longitude, h.DataPoints,
		h.AverageCongestion, h.Frequency, string(payload), h.LastUpdated)
	if err != nil {
		return fmt.Errorf("upserting hotspot %s: %w", h.Key(), err)
	}
	return nil
}

func (b *SQLBackend) UpsertRoute(ctx context.Context, r *traffic.AlternativeRoute) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling route: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO alternative_routes (id, route_key, payload, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		r.ID, r.Key(), string(payload), r.Timestamp)
	if err != nil {
		return fmt.Errorf("upserting route %s: %w", r.ID, err)
	}
	return nil
}

func (b *SQLBackend) UpsertAnalysis(ctx context.Context, a *traffic.StoredAnalysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO stored_analyses (id, location_key, payload, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		a.ID, a.Observation.Location.Key(), string(payload), a.Timestamp)
	if err != nil {
		return fmt.Errorf("upserting analysis %s: %w", a.ID, err)
	}
	return nil
}

// NearbyHotspots returns all hotspots whose coordinates fall inside box,
// decoded from their stored payloads.
func (b *SQLBackend) NearbyHotspots(ctx context.Context, box BoundingBox) ([]*traffic.Hotspot, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT payload FROM traffic_hotspots
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		ORDER BY average_congestion DESC`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("querying nearby hotspots: %w", err)
	}
	defer rows.Close()

	var out []*traffic.Hotspot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning hotspot row: %w", err)
		}
		var h traffic.Hotspot
		if err := json.Unmarshal([]byte(payload), &h); err != nil {
			return nil, fmt.Errorf("decoding hotspot payload: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
