package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roadpulse/roadpulse/pkg/traffic"
)

const (
	// ArtifactType tags every backup artifact.
	ArtifactType = "complete_traffic_backup"

	// ArtifactVersion is the current artifact schema version.
	ArtifactVersion = "1.0"
)

// ErrFormat marks a backup artifact that is malformed or carries the wrong
// type/version. Restoring such an artifact leaves current state untouched.
var ErrFormat = errors.New("backup artifact format mismatch")

// ArtifactStats summarizes the dataset inside an artifact.
type ArtifactStats struct {
	PatternCount  int `json:"patternCount"`
	HotspotCount  int `json:"hotspotCount"`
	RouteCount    int `json:"routeCount"`
	AnalysisCount int `json:"analysisCount"`
}

// Artifact is one self-contained, versioned serialization of the entire
// store. restore(backup(state)) reproduces state's four maps exactly.
type Artifact struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`

	TrafficPatterns   map[string][]*traffic.Pattern          `json:"trafficPatterns"`
	Hotspots          map[string]*traffic.Hotspot            `json:"hotspots"`
	AlternativeRoutes map[string][]*traffic.AlternativeRoute `json:"alternativeRoutes"`
	StoredData        map[string]*traffic.StoredAnalysis     `json:"storedData"`

	Stats ArtifactStats `json:"stats"`
}

// NewArtifact snapshots a state into a backup artifact stamped at now.
func NewArtifact(st *State, now time.Time) *Artifact {
	c := st.Clone()
	return &Artifact{
		Type:              ArtifactType,
		Version:           ArtifactVersion,
		CreatedAt:         now,
		TrafficPatterns:   c.Patterns,
		Hotspots:          c.Hotspots,
		AlternativeRoutes: c.Routes,
		StoredData:        c.Analyses,
		Stats: ArtifactStats{
			PatternCount:  c.PatternCount(),
			HotspotCount:  len(c.Hotspots),
			RouteCount:    c.RouteCount(),
			AnalysisCount: len(c.Analyses),
		},
	}
}

// Encode serializes the artifact to JSON.
func (a *Artifact) Encode() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding backup artifact: %w", err)
	}
	return data, nil
}

// DecodeArtifact parses and validates a backup artifact. Malformed JSON or
// a type/version mismatch returns an error wrapping ErrFormat.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if a.Type != ArtifactType {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrFormat, a.Type)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrFormat, a.Version)
	}
	return &a, nil
}

// State converts the artifact back into a store state.
func (a *Artifact) State() *State {
	st := NewState()
	if a.TrafficPatterns != nil {
		st.Patterns = a.TrafficPatterns
	}
	if a.Hotspots != nil {
		st.Hotspots = a.Hotspots
	}
	if a.AlternativeRoutes != nil {
		st.Routes = a.AlternativeRoutes
	}
	if a.StoredData != nil {
		st.Analyses = a.StoredData
	}
	return st
}
