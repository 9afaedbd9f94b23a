package traffic

import (
	"time"

	"github.com/google/uuid"
)

// defaultSpeed stands in for averageSpeed when an observation carries no
// samples.
const defaultSpeed = 50.0

// Extractor derives immutable patterns from raw analyses. It is a pure
// transformation: it never fails, clamping out-of-range inputs instead.
type Extractor struct {
	calendar *Calendar
}

// NewExtractor builds an extractor over the given holiday calendar. A nil
// calendar falls back to the built-in table.
func NewExtractor(calendar *Calendar) *Extractor {
	if calendar == nil {
		calendar = NewCalendar()
	}
	return &Extractor{calendar: calendar}
}

// Extract turns one observation and its analysis result into a pattern
// stamped at ts.
func (e *Extractor) Extract(obs Observation, res AnalysisResult, ts time.Time) *Pattern {
	hour := ts.Hour()
	day := int(ts.Weekday())

	weekend := day == 0 || day == 6
	rush := !weekend && ((hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19))

	return &Pattern{
		ID:              uuid.New().String(),
		Location:        obs.Location,
		Severity:        NormalizeSeverity(res.Severity),
		CongestionLevel: Clamp(res.PredictedCongestion, 0, 100),
		AverageSpeed:    averageSpeed(obs.Samples),
		Confidence:      Clamp(res.Confidence, 0, 1),
		Timestamp:       ts,
		DayOfWeek:       day,
		HourOfDay:       hour,
		Month:           int(ts.Month()),
		Season:          SeasonOf(ts.Month()),
		IsHoliday:       e.calendar.IsHoliday(ts),
		IsWeekend:       weekend,
		IsRushHour:      rush,
	}
}

func averageSpeed(samples []Sample) float64 {
	if len(samples) == 0 {
		return defaultSpeed
	}
	var sum float64
	for _, s := range samples {
		sum += s.Speed
	}
	return sum / float64(len(samples))
}
