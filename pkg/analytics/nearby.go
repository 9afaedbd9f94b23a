package analytics

import (
	"sort"

	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// NearbyHotspot pairs a hotspot with its haversine distance from the query
// point.
type NearbyHotspot struct {
	Hotspot    *traffic.Hotspot `json:"hotspot"`
	DistanceKm float64          `json:"distanceKm"`
}

// Nearby returns all hotspots within radiusKm of center, closest first.
func Nearby(st *store.State, center traffic.Location, radiusKm float64) []NearbyHotspot {
	out := []NearbyHotspot{}
	for _, h := range st.Hotspots {
		d := traffic.Haversine(center, h.Location)
		if d <= radiusKm {
			out = append(out, NearbyHotspot{Hotspot: h, DistanceKm: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Hotspot.Key() < out[j].Hotspot.Key()
	})
	return out
}

// BestRoutes returns the recorded alternative routes between origin and
// destination, newest first.
func BestRoutes(st *store.State, origin, destination traffic.Location) []*traffic.AlternativeRoute {
	routes := append([]*traffic.AlternativeRoute(nil), st.Routes[traffic.RouteKey(origin, destination)]...)
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Timestamp.After(routes[j].Timestamp)
	})
	return routes
}
