package hotspots

import (
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

const (
	// peakListCap bounds the peakHours and peakDays lists. Once full, the
	// earliest five values seen are kept and later ones are ignored.
	peakListCap = 5

	frequencySeedElevated = 0.1
	frequencySeedBase     = 0.01
	frequencyStep         = 0.01
	frequencyMax          = 1.0
)

// New seeds a hotspot aggregate from the first pattern observed at a key.
func New(p *traffic.Pattern) *traffic.Hotspot {
	freq := frequencySeedBase
	if p.Severity.Elevated() {
		freq = frequencySeedElevated
	}

	seasonal := make(map[traffic.Season]float64, 4)
	for _, s := range traffic.Seasons() {
		seasonal[s] = 0
	}
	seasonal[p.Season] = p.CongestionLevel

	return &traffic.Hotspot{
		Location:          p.Location,
		DataPoints:        1,
		AverageCongestion: p.CongestionLevel,
		Frequency:         freq,
		PeakHours:         []int{p.HourOfDay},
		PeakDays:          []int{p.DayOfWeek},
		SeasonalPatterns:  seasonal,
		LastUpdated:       p.Timestamp,
	}
}

// Fold applies one more pattern to an existing aggregate in place.
//
// averageCongestion stays the exact arithmetic mean of every congestion
// value folded in: avg = (avg*(n-1) + c) / n after n has been incremented.
func Fold(h *traffic.Hotspot, p *traffic.Pattern) {
	h.DataPoints++
	n := float64(h.DataPoints)
	h.AverageCongestion = (h.AverageCongestion*(n-1) + p.CongestionLevel) / n

	if p.Severity.Elevated() {
		h.Frequency += frequencyStep
		if h.Frequency > frequencyMax {
			h.Frequency = frequencyMax
		}
	}

	h.PeakHours = appendBounded(h.PeakHours, p.HourOfDay)
	h.PeakDays = appendBounded(h.PeakDays, p.DayOfWeek)

	if h.SeasonalPatterns == nil {
		h.SeasonalPatterns = make(map[traffic.Season]float64, 4)
	}
	h.SeasonalPatterns[p.Season] = (h.SeasonalPatterns[p.Season] + p.CongestionLevel) / 2

	h.LastUpdated = p.Timestamp
}

// appendBounded appends v if absent and the list is below cap. A full list
// keeps its earliest entries.
func appendBounded(list []int, v int) []int {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	if len(list) >= peakListCap {
		return list
	}
	return append(list, v)
}
