package traffic

import (
	"testing"
	"time"
)

func TestLocationKey(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{
			name: "rounds to 4 decimals",
			loc:  Location{Latitude: 37.774929, Longitude: -122.419416},
			want: "37.7749,-122.4194",
		},
		{
			name: "pads short coordinates",
			loc:  Location{Latitude: 40.5, Longitude: -74},
			want: "40.5000,-74.0000",
		},
		{
			name: "zero location",
			loc:  Location{},
			want: "0.0000,0.0000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteKey(t *testing.T) {
	origin := Location{Latitude: 37.7749, Longitude: -122.4194}
	dest := Location{Latitude: 37.3382, Longitude: -121.8863}

	want := "37.7749,-122.4194|37.3382,-121.8863"
	if got := RouteKey(origin, dest); got != want {
		t.Errorf("RouteKey() = %q, want %q", got, want)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		raw  string
		want Severity
	}{
		{"low", SeverityLow},
		{"moderate", SeverityModerate},
		{"high", SeverityHigh},
		{"severe", SeveritySevere},
		{"critical", SeverityModerate},
		{"", SeverityModerate},
		{"HIGH", SeverityModerate},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeSeverity(tt.raw); got != tt.want {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSeverityElevated(t *testing.T) {
	if SeverityLow.Elevated() || SeverityModerate.Elevated() {
		t.Error("low and moderate should not be elevated")
	}
	if !SeverityHigh.Elevated() || !SeveritySevere.Elevated() {
		t.Error("high and severe should be elevated")
	}
}

func TestSeasonOf(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.December, SeasonWinter},
		{time.January, SeasonWinter},
		{time.February, SeasonWinter},
		{time.March, SeasonSpring},
		{time.May, SeasonSpring},
		{time.June, SeasonSummer},
		{time.August, SeasonSummer},
		{time.September, SeasonFall},
		{time.November, SeasonFall},
	}

	for _, tt := range tests {
		if got := SeasonOf(tt.month); got != tt.want {
			t.Errorf("SeasonOf(%s) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func TestHotspotClone(t *testing.T) {
	h := &Hotspot{
		Location:          Location{Latitude: 37.7749, Longitude: -122.4194},
		DataPoints:        3,
		AverageCongestion: 55,
		PeakHours:         []int{8, 17},
		PeakDays:          []int{1},
		SeasonalPatterns:  map[Season]float64{SeasonSummer: 60},
	}

	c := h.Clone()
	c.PeakHours[0] = 99
	c.SeasonalPatterns[SeasonWinter] = 10

	if h.PeakHours[0] != 8 {
		t.Error("Clone shares PeakHours backing array")
	}
	if _, ok := h.SeasonalPatterns[SeasonWinter]; ok {
		t.Error("Clone shares SeasonalPatterns map")
	}

	var nilHotspot *Hotspot
	if nilHotspot.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
