package analytics

import (
	"sort"

	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// HourBucket is the average congestion observed during one hour of day.
type HourBucket struct {
	Hour              int     `json:"hour"`
	AverageCongestion float64 `json:"averageCongestion"`
	Count             int     `json:"count"`
}

// DayBucket is the average congestion observed on one day of week.
type DayBucket struct {
	Day               int     `json:"day"`
	DayName           string  `json:"dayName"`
	AverageCongestion float64 `json:"averageCongestion"`
	Count             int     `json:"count"`
}

// SeasonTrend is the seasonal mean. Trend direction inference is out of
// scope, so the label is always "stable".
type SeasonTrend struct {
	Season            traffic.Season `json:"season"`
	AverageCongestion float64        `json:"averageCongestion"`
	Trend             string         `json:"trend"`
}

// RouteRecommendation is an extension point; nothing produces them yet.
type RouteRecommendation struct {
	Origin      traffic.Location `json:"origin"`
	Destination traffic.Location `json:"destination"`
	Reason      string           `json:"reason"`
}

// Report is one full analytics answer.
type Report struct {
	LocationFilter       string                `json:"locationFilter,omitempty"`
	TotalDataPoints      int                   `json:"totalDataPoints"`
	AverageCongestion    float64               `json:"averageCongestion"`
	PeakTrafficHours     []HourBucket          `json:"peakTrafficHours"`
	PeakTrafficDays      []DayBucket           `json:"peakTrafficDays"`
	SeasonalTrends       []SeasonTrend         `json:"seasonalTrends"`
	TopHotspots          []*traffic.Hotspot    `json:"topHotspots"`
	RouteRecommendations []RouteRecommendation `json:"routeRecommendations"`
}

// Compute builds a report over the snapshot. locationKey narrows the
// pattern selection to one key; empty means all. An empty selection yields
// a zero-valued report with empty lists, never an error.
func Compute(st *store.State, locationKey string) *Report {
	r := &Report{
		LocationFilter:       locationKey,
		PeakTrafficHours:     []HourBucket{},
		PeakTrafficDays:      []DayBucket{},
		SeasonalTrends:       []SeasonTrend{},
		TopHotspots:          []*traffic.Hotspot{},
		RouteRecommendations: []RouteRecommendation{},
	}

	var patterns []*traffic.Pattern
	if locationKey == "" {
		patterns = st.AllPatterns()
	} else {
		patterns = st.Patterns[locationKey]
	}

	r.TotalDataPoints = len(patterns)
	if len(patterns) > 0 {
		var sum float64
		for _, p := range patterns {
			sum += p.CongestionLevel
		}
		r.AverageCongestion = sum / float64(len(patterns))

		r.PeakTrafficHours = peakHours(patterns)
		r.PeakTrafficDays = peakDays(patterns)
		r.SeasonalTrends = seasonalTrends(patterns)
	}

	r.TopHotspots = topHotspots(st, 10)
	return r
}

// peakHours groups by hour of day, averages, and keeps the top 5 by
// average congestion. Equal averages rank the busier hour first, then the
// earlier hour.
func peakHours(patterns []*traffic.Pattern) []HourBucket {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range patterns {
		sums[p.HourOfDay] += p.CongestionLevel
		counts[p.HourOfDay]++
	}

	buckets := make([]HourBucket, 0, len(sums))
	for hour, sum := range sums {
		buckets = append(buckets, HourBucket{
			Hour:              hour,
			AverageCongestion: sum / float64(counts[hour]),
			Count:             counts[hour],
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].AverageCongestion != buckets[j].AverageCongestion {
			return buckets[i].AverageCongestion > buckets[j].AverageCongestion
		}
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Hour < buckets[j].Hour
	})

	if len(buckets) > 5 {
		buckets = buckets[:5]
	}
	return buckets
}

// peakDays reports all seven days sorted by average congestion descending.
// Days with no observations appear with zero values.
func peakDays(patterns []*traffic.Pattern) []DayBucket {
	var sums [7]float64
	var counts [7]int
	for _, p := range patterns {
		if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
			continue
		}
		sums[p.DayOfWeek] += p.CongestionLevel
		counts[p.DayOfWeek]++
	}

	buckets := make([]DayBucket, 7)
	for day := 0; day < 7; day++ {
		b := DayBucket{Day: day, DayName: dayNames[day], Count: counts[day]}
		if counts[day] > 0 {
			b.AverageCongestion = sums[day] / float64(counts[day])
		}
		buckets[day] = b
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].AverageCongestion != buckets[j].AverageCongestion {
			return buckets[i].AverageCongestion > buckets[j].AverageCongestion
		}
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Day < buckets[j].Day
	})
	return buckets
}

// seasonalTrends reports all four seasons in calendar order; seasons with
// no observations carry zero.
func seasonalTrends(patterns []*traffic.Pattern) []SeasonTrend {
	sums := make(map[traffic.Season]float64)
	counts := make(map[traffic.Season]int)
	for _, p := range patterns {
		sums[p.Season] += p.CongestionLevel
		counts[p.Season]++
	}

	trends := make([]SeasonTrend, 0, 4)
	for _, season := range traffic.Seasons() {
		t := SeasonTrend{Season: season, Trend: "stable"}
		if counts[season] > 0 {
			t.AverageCongestion = sums[season] / float64(counts[season])
		}
		trends = append(trends, t)
	}
	return trends
}

// topHotspots ranks every hotspot by average congestion descending, ties
// broken by location key, and keeps the first limit.
func topHotspots(st *store.State, limit int) []*traffic.Hotspot {
	out := make([]*traffic.Hotspot, 0, len(st.Hotspots))
	for _, h := range st.Hotspots {
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageCongestion != out[j].AverageCongestion {
			return out[i].AverageCongestion > out[j].AverageCongestion
		}
		return out[i].Key() < out[j].Key()
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
