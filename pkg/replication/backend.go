package replication

import (
	"context"
	"math"

	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// Backend is a centralized replication target: a remote database keyed the
// same way as the local store. Implementations must be safe for concurrent
// use.
type Backend interface {
	Name() string

	UpsertPattern(ctx context.Context, p *traffic.Pattern) error
	UpsertHotspot(ctx context.Context, h *traffic.Hotspot) error
	UpsertRoute(ctx context.Context, r *traffic.AlternativeRoute) error
	UpsertAnalysis(ctx context.Context, a *traffic.StoredAnalysis) error

	// NearbyHotspots returns hotspots inside the bounding box, for
	// queries served remotely rather than from the local store.
	NearbyHotspots(ctx context.Context, box BoundingBox) ([]*traffic.Hotspot, error)
}

// UploadRef identifies an uploaded backup artifact on an archive backend.
type UploadRef struct {
	ContentHash string `json:"contentHash"`
	TxRef       string `json:"txRef"`
}

// ArchiveBackend is a content-addressed target used only for whole-dataset
// backup artifacts.
type ArchiveBackend interface {
	Name() string
	Upload(ctx context.Context, data []byte) (UploadRef, error)
	Download(ctx context.Context, contentHash string) ([]byte, error)
}

// BoundingBox is an inclusive lat/lng rectangle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the location falls inside the box.
func (b BoundingBox) Contains(loc traffic.Location) bool {
	return loc.Latitude >= b.MinLat && loc.Latitude <= b.MaxLat &&
		loc.Longitude >= b.MinLng && loc.Longitude <= b.MaxLng
}

// BoxAround builds a bounding box of roughly radiusKm around center. One
// degree of latitude is ~111 km; longitude degrees shrink with latitude.
// Callers still filter by haversine distance, the box just prunes.
func BoxAround(center traffic.Location, radiusKm float64) BoundingBox {
	latDelta := radiusKm / 111.0
	lngDelta := latDelta
	if cosLat := math.Cos(center.Latitude * math.Pi / 180); cosLat > 0.01 {
		lngDelta = latDelta / cosLat
	}
	return BoundingBox{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: center.Longitude - lngDelta,
		MaxLng: center.Longitude + lngDelta,
	}
}
