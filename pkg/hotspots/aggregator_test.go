package hotspots

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/roadpulse/roadpulse/pkg/traffic"
)

func pattern(congestion float64, severity traffic.Severity) *traffic.Pattern {
	return &traffic.Pattern{
		ID:              "p",
		Location:        traffic.Location{Latitude: 37.7749, Longitude: -122.4194},
		Severity:        severity,
		CongestionLevel: congestion,
		Season:          traffic.SeasonSummer,
		HourOfDay:       8,
		DayOfWeek:       2,
		Timestamp:       time.Date(2026, time.July, 7, 8, 0, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	t.Run("seeds from first pattern", func(t *testing.T) {
		p := pattern(62, traffic.SeverityModerate)
		h := New(p)

		if h.DataPoints != 1 {
			t.Errorf("DataPoints = %d, want 1", h.DataPoints)
		}
		if h.AverageCongestion != 62 {
			t.Errorf("AverageCongestion = %f, want 62", h.AverageCongestion)
		}
		if h.Frequency != 0.01 {
			t.Errorf("Frequency = %f, want 0.01", h.Frequency)
		}
		if len(h.PeakHours) != 1 || h.PeakHours[0] != 8 {
			t.Errorf("PeakHours = %v, want [8]", h.PeakHours)
		}
		if len(h.PeakDays) != 1 || h.PeakDays[0] != 2 {
			t.Errorf("PeakDays = %v, want [2]", h.PeakDays)
		}
		if h.SeasonalPatterns[traffic.SeasonSummer] != 62 {
			t.Errorf("Summer = %f, want 62", h.SeasonalPatterns[traffic.SeasonSummer])
		}
		if h.SeasonalPatterns[traffic.SeasonWinter] != 0 {
			t.Errorf("Winter = %f, want 0", h.SeasonalPatterns[traffic.SeasonWinter])
		}
		if !h.LastUpdated.Equal(p.Timestamp) {
			t.Error("LastUpdated should match the pattern timestamp")
		}
	})

	t.Run("elevated severity seeds higher frequency", func(t *testing.T) {
		for _, sev := range []traffic.Severity{traffic.SeverityHigh, traffic.SeveritySevere} {
			if h := New(pattern(50, sev)); h.Frequency != 0.1 {
				t.Errorf("Frequency for %s = %f, want 0.1", sev, h.Frequency)
			}
		}
	})
}

func TestFold_ExactMean(t *testing.T) {
	t.Run("small sequence", func(t *testing.T) {
		h := New(pattern(10, traffic.SeverityLow))
		Fold(h, pattern(20, traffic.SeverityLow))
		Fold(h, pattern(60, traffic.SeverityLow))

		if h.DataPoints != 3 {
			t.Errorf("DataPoints = %d, want 3", h.DataPoints)
		}
		if h.AverageCongestion != 30 {
			t.Errorf("AverageCongestion = %f, want 30", h.AverageCongestion)
		}
	})

	t.Run("mean matches batch mean for random sequences", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for trial := 0; trial < 20; trial++ {
			values := make([]float64, 1+rng.Intn(200))
			for i := range values {
				values[i] = rng.Float64() * 100
			}

			h := New(pattern(values[0], traffic.SeverityLow))
			var sum = values[0]
			for _, v := range values[1:] {
				Fold(h, pattern(v, traffic.SeverityLow))
				sum += v
			}

			want := sum / float64(len(values))
			if math.Abs(h.AverageCongestion-want) > 1e-9 {
				t.Fatalf("trial %d: incremental mean %f, batch mean %f", trial, h.AverageCongestion, want)
			}
			if h.DataPoints != len(values) {
				t.Fatalf("trial %d: DataPoints = %d, want %d", trial, h.DataPoints, len(values))
			}
		}
	})
}

func TestFold_Frequency(t *testing.T) {
	t.Run("only elevated severities increment", func(t *testing.T) {
		h := New(pattern(50, traffic.SeverityLow))
		Fold(h, pattern(50, traffic.SeverityModerate))
		if h.Frequency != 0.01 {
			t.Errorf("Frequency = %f, want unchanged 0.01", h.Frequency)
		}

		Fold(h, pattern(50, traffic.SeverityHigh))
		if math.Abs(h.Frequency-0.02) > 1e-12 {
			t.Errorf("Frequency = %f, want 0.02", h.Frequency)
		}

		Fold(h, pattern(50, traffic.SeveritySevere))
		if math.Abs(h.Frequency-0.03) > 1e-12 {
			t.Errorf("Frequency = %f, want 0.03", h.Frequency)
		}
	})

	t.Run("saturates at 1.0", func(t *testing.T) {
		h := New(pattern(50, traffic.SeveritySevere))
		for i := 0; i < 200; i++ {
			Fold(h, pattern(50, traffic.SeveritySevere))
		}
		if h.Frequency != 1.0 {
			t.Errorf("Frequency = %f, want saturated 1.0", h.Frequency)
		}

		prev := h.Frequency
		Fold(h, pattern(50, traffic.SeverityLow))
		if h.Frequency < prev {
			t.Error("Frequency must never decrease")
		}
	})
}

func TestFold_PeakLists(t *testing.T) {
	t.Run("keeps earliest five distinct hours", func(t *testing.T) {
		first := pattern(50, traffic.SeverityLow)
		first.HourOfDay = 0
		h := New(first)

		for _, hour := range []int{1, 2, 3, 4, 5, 6, 2} {
			p := pattern(50, traffic.SeverityLow)
			p.HourOfDay = hour
			Fold(h, p)
		}

		want := []int{0, 1, 2, 3, 4}
		if len(h.PeakHours) != len(want) {
			t.Fatalf("PeakHours = %v, want %v", h.PeakHours, want)
		}
		for i, v := range want {
			if h.PeakHours[i] != v {
				t.Fatalf("PeakHours = %v, want %v", h.PeakHours, want)
			}
		}
	})

	t.Run("duplicate values are not re-added", func(t *testing.T) {
		h := New(pattern(50, traffic.SeverityLow))
		for i := 0; i < 10; i++ {
			Fold(h, pattern(50, traffic.SeverityLow))
		}
		if len(h.PeakHours) != 1 || len(h.PeakDays) != 1 {
			t.Errorf("PeakHours = %v, PeakDays = %v, want single entries", h.PeakHours, h.PeakDays)
		}
	})
}

func TestFold_SeasonalTwoPointAverage(t *testing.T) {
	h := New(pattern(80, traffic.SeverityLow))

	// (80 + 40) / 2 = 60
	Fold(h, pattern(40, traffic.SeverityLow))
	if h.SeasonalPatterns[traffic.SeasonSummer] != 60 {
		t.Errorf("Summer = %f, want 60", h.SeasonalPatterns[traffic.SeasonSummer])
	}

	// (60 + 100) / 2 = 80: a two-point average, not a running mean.
	Fold(h, pattern(100, traffic.SeverityLow))
	if h.SeasonalPatterns[traffic.SeasonSummer] != 80 {
		t.Errorf("Summer = %f, want 80", h.SeasonalPatterns[traffic.SeasonSummer])
	}

	// Other seasons start from their zero value: (0 + 50) / 2 = 25.
	winter := pattern(50, traffic.SeverityLow)
	winter.Season = traffic.SeasonWinter
	Fold(h, winter)
	if h.SeasonalPatterns[traffic.SeasonWinter] != 25 {
		t.Errorf("Winter = %f, want 25", h.SeasonalPatterns[traffic.SeasonWinter])
	}
}

func TestFold_CongestionStaysInRange(t *testing.T) {
	h := New(pattern(0, traffic.SeverityLow))
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		Fold(h, pattern(rng.Float64()*100, traffic.SeverityLow))
		if h.AverageCongestion < 0 || h.AverageCongestion > 100 {
			t.Fatalf("AverageCongestion out of range: %f", h.AverageCongestion)
		}
	}
}
