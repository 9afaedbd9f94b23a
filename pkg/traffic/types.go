package traffic

import (
	"fmt"
	"time"
)

// Severity classifies how bad observed conditions are.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

// Elevated reports whether the severity contributes to hotspot frequency.
func (s Severity) Elevated() bool {
	return s == SeverityHigh || s == SeveritySevere
}

// NormalizeSeverity maps free-form severity strings onto the known set.
// Unknown values fall back to moderate.
func NormalizeSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityLow, SeverityModerate, SeverityHigh, SeveritySevere:
		return Severity(raw)
	default:
		return SeverityModerate
	}
}

// Season is a fixed 3-month calendar bucket.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
)

// Seasons returns all seasons in calendar order.
func Seasons() []Season {
	return []Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonFall}
}

// SeasonOf buckets a month: Dec-Feb winter, Mar-May spring, Jun-Aug summer,
// Sep-Nov fall.
func SeasonOf(month time.Month) Season {
	switch month {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonFall
	}
}

// Location is a point on the road network.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns the grouping key for this location: lat/lng rounded to
// 4 decimals, comma joined.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// RouteKey builds the grouping key for an origin/destination pair.
func RouteKey(origin, destination Location) string {
	return origin.Key() + "|" + destination.Key()
}

// Sample is one raw speed reading attached to an observation.
type Sample struct {
	Speed float64 `json:"speed"`
}

// Observation is the raw request side of one analysis: where, what was
// measured, and the caller-reported time of day.
type Observation struct {
	Location  Location `json:"location"`
	Samples   []Sample `json:"samples"`
	TimeOfDay string   `json:"timeOfDay"`
}

// AnalysisResult is the opaque output of the upstream condition analyzer.
// The engine consumes it as-is and never produces one.
type AnalysisResult struct {
	Severity                    string  `json:"severity"`
	PredictedCongestion         float64 `json:"predictedCongestion"`
	Confidence                  float64 `json:"confidence"`
	Summary                     string  `json:"summary"`
	Recommendations             string  `json:"recommendations"`
	BestTimeToTravel            string  `json:"bestTimeToTravel"`
	AlternativeRoutesSuggestion string  `json:"alternativeRoutesSuggestion"`
	EstimatedDelayMinutes       float64 `json:"estimatedDelayMinutes"`
}

// Pattern is one immutable observation of conditions at a place and time.
type Pattern struct {
	ID              string    `json:"id"`
	Location        Location  `json:"location"`
	Severity        Severity  `json:"severity"`
	CongestionLevel float64   `json:"congestionLevel"`
	AverageSpeed    float64   `json:"averageSpeed"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	DayOfWeek       int       `json:"dayOfWeek"`
	HourOfDay       int       `json:"hourOfDay"`
	Month           int       `json:"month"`
	Season          Season    `json:"season"`
	IsHoliday       bool      `json:"isHoliday"`
	IsWeekend       bool      `json:"isWeekend"`
	IsRushHour      bool      `json:"isRushHour"`
}

// Key returns the location key the pattern groups under.
func (p *Pattern) Key() string {
	return p.Location.Key()
}

// Hotspot is the mutable rolling aggregate of every pattern seen at one
// location key.
type Hotspot struct {
	Location          Location           `json:"location"`
	DataPoints        int                `json:"dataPoints"`
	AverageCongestion float64            `json:"averageCongestion"`
	Frequency         float64            `json:"frequency"`
	PeakHours         []int              `json:"peakHours"`
	PeakDays          []int              `json:"peakDays"`
	SeasonalPatterns  map[Season]float64 `json:"seasonalPatterns"`
	LastUpdated       time.Time          `json:"lastUpdated"`
}

// Key returns the location key the hotspot is stored under.
func (h *Hotspot) Key() string {
	return h.Location.Key()
}

// Clone returns a deep copy safe to hand out to readers.
func (h *Hotspot) Clone() *Hotspot {
	if h == nil {
		return nil
	}
	c := *h
	c.PeakHours = append([]int(nil), h.PeakHours...)
	c.PeakDays = append([]int(nil), h.PeakDays...)
	c.SeasonalPatterns = make(map[Season]float64, len(h.SeasonalPatterns))
	for k, v := range h.SeasonalPatterns {
		c.SeasonalPatterns[k] = v
	}
	return &c
}

// AlternativeRoute is one recorded route suggestion between two locations.
type AlternativeRoute struct {
	ID          string    `json:"id"`
	Origin      Location  `json:"origin"`
	Destination Location  `json:"destination"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the route grouping key.
func (r *AlternativeRoute) Key() string {
	return RouteKey(r.Origin, r.Destination)
}

// StoredAnalysis keeps the raw request/response pair for export and audit.
type StoredAnalysis struct {
	ID          string         `json:"id"`
	Observation Observation    `json:"observation"`
	Result      AnalysisResult `json:"result"`
	Timestamp   time.Time      `json:"timestamp"`
}
