package traffic

import (
	"testing"
	"time"
)

var testLoc = Location{Latitude: 37.7749, Longitude: -122.4194}

func TestExtract_CalendarDerivations(t *testing.T) {
	e := NewExtractor(nil)

	tests := []struct {
		name        string
		ts          time.Time
		wantWeekend bool
		wantRush    bool
		wantSeason  Season
	}{
		{
			name:        "weekday morning rush",
			ts:          time.Date(2026, time.March, 17, 8, 30, 0, 0, time.UTC), // Tuesday
			wantWeekend: false,
			wantRush:    true,
			wantSeason:  SeasonSpring,
		},
		{
			name:        "weekday evening rush",
			ts:          time.Date(2026, time.March, 17, 18, 0, 0, 0, time.UTC),
			wantWeekend: false,
			wantRush:    true,
			wantSeason:  SeasonSpring,
		},
		{
			name:        "weekday midday",
			ts:          time.Date(2026, time.March, 17, 12, 0, 0, 0, time.UTC),
			wantWeekend: false,
			wantRush:    false,
			wantSeason:  SeasonSpring,
		},
		{
			name:        "saturday morning is not rush",
			ts:          time.Date(2026, time.March, 21, 8, 0, 0, 0, time.UTC), // Saturday
			wantWeekend: true,
			wantRush:    false,
			wantSeason:  SeasonSpring,
		},
		{
			name:        "sunday",
			ts:          time.Date(2026, time.December, 20, 10, 0, 0, 0, time.UTC), // Sunday
			wantWeekend: true,
			wantRush:    false,
			wantSeason:  SeasonWinter,
		},
		{
			name:        "hour 10 just past morning rush",
			ts:          time.Date(2026, time.March, 17, 10, 0, 0, 0, time.UTC),
			wantWeekend: false,
			wantRush:    false,
			wantSeason:  SeasonSpring,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.Extract(Observation{Location: testLoc}, AnalysisResult{Severity: "moderate"}, tt.ts)

			if p.IsWeekend != tt.wantWeekend {
				t.Errorf("IsWeekend = %v, want %v", p.IsWeekend, tt.wantWeekend)
			}
			if p.IsRushHour != tt.wantRush {
				t.Errorf("IsRushHour = %v, want %v", p.IsRushHour, tt.wantRush)
			}
			if p.Season != tt.wantSeason {
				t.Errorf("Season = %q, want %q", p.Season, tt.wantSeason)
			}
			if p.DayOfWeek != int(tt.ts.Weekday()) {
				t.Errorf("DayOfWeek = %d, want %d", p.DayOfWeek, int(tt.ts.Weekday()))
			}
			if p.HourOfDay != tt.ts.Hour() {
				t.Errorf("HourOfDay = %d, want %d", p.HourOfDay, tt.ts.Hour())
			}
			if p.Month != int(tt.ts.Month()) {
				t.Errorf("Month = %d, want %d", p.Month, int(tt.ts.Month()))
			}
		})
	}
}

func TestExtract_Holiday(t *testing.T) {
	e := NewExtractor(NewCalendar())

	christmas := time.Date(2026, time.December, 25, 9, 0, 0, 0, time.UTC)
	ordinary := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)

	if !e.Extract(Observation{Location: testLoc}, AnalysisResult{}, christmas).IsHoliday {
		t.Error("December 25 should be a holiday")
	}
	if e.Extract(Observation{Location: testLoc}, AnalysisResult{}, ordinary).IsHoliday {
		t.Error("June 2 should not be a holiday")
	}
}

func TestExtract_Clamping(t *testing.T) {
	e := NewExtractor(nil)
	ts := time.Date(2026, time.March, 17, 12, 0, 0, 0, time.UTC)

	p := e.Extract(Observation{Location: testLoc}, AnalysisResult{
		Severity:            "apocalyptic",
		PredictedCongestion: 250,
		Confidence:          1.8,
	}, ts)

	if p.Severity != SeverityModerate {
		t.Errorf("Unknown severity should normalize to moderate, got %q", p.Severity)
	}
	if p.CongestionLevel != 100 {
		t.Errorf("CongestionLevel should clamp to 100, got %f", p.CongestionLevel)
	}
	if p.Confidence != 1 {
		t.Errorf("Confidence should clamp to 1, got %f", p.Confidence)
	}

	p = e.Extract(Observation{Location: testLoc}, AnalysisResult{
		PredictedCongestion: -5,
		Confidence:          -0.2,
	}, ts)
	if p.CongestionLevel != 0 || p.Confidence != 0 {
		t.Error("Negative inputs should clamp to 0")
	}
}

func TestExtract_AverageSpeed(t *testing.T) {
	e := NewExtractor(nil)
	ts := time.Now()

	t.Run("no samples uses default", func(t *testing.T) {
		p := e.Extract(Observation{Location: testLoc}, AnalysisResult{}, ts)
		if p.AverageSpeed != defaultSpeed {
			t.Errorf("Expected default speed %f, got %f", defaultSpeed, p.AverageSpeed)
		}
	})

	t.Run("mean of sample speeds", func(t *testing.T) {
		obs := Observation{
			Location: testLoc,
			Samples:  []Sample{{Speed: 30}, {Speed: 60}, {Speed: 90}},
		}
		p := e.Extract(obs, AnalysisResult{}, ts)
		if p.AverageSpeed != 60 {
			t.Errorf("Expected 60, got %f", p.AverageSpeed)
		}
	})
}

func TestExtract_UniqueIDs(t *testing.T) {
	e := NewExtractor(nil)
	ts := time.Now()

	a := e.Extract(Observation{Location: testLoc}, AnalysisResult{}, ts)
	b := e.Extract(Observation{Location: testLoc}, AnalysisResult{}, ts)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Patterns should get distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
}
