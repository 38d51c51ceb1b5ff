package trend

import (
	"math"

	"fx-rate-alerts/internal/series"
)

// Result carries the half-window comparison for one averaging window.
//
// AngleDeg feeds atan with a slope measured in currency units per day, so the
// angle mixes units on purpose. It is a bounded intensity transform for
// display, not a financial indicator, and nothing downstream decides on it.
type Result struct {
	AvgFirst    float64
	AvgLast     float64
	Delta       float64
	SlopePerDay float64
	AngleDeg    float64
	PctPerDay   float64
}

// Analyze splits the last windowN samples into an earlier and a later half and
// compares their means. It reports false until the window is completely
// filled. Integer division puts the extra element of an odd window into the
// later half. halfDays is the real-world span of one half (7.5 for a 15-day
// window).
func Analyze(values []float64, windowN int, halfDays float64) (Result, bool) {
	if windowN < 2 || halfDays <= 0 || len(values) < windowN {
		return Result{}, false
	}

	window := values[len(values)-windowN:]
	half := windowN / 2
	first := window[:half]
	last := window[half:]

	r := Result{
		AvgFirst: series.Mean(first),
		AvgLast:  series.Mean(last),
	}
	r.Delta = r.AvgLast - r.AvgFirst
	r.SlopePerDay = r.Delta / halfDays
	r.AngleDeg = math.Atan(r.SlopePerDay) * 180 / math.Pi
	if r.AvgFirst != 0 {
		r.PctPerDay = r.SlopePerDay / r.AvgFirst * 100
	}
	return r, true
}

// Direction buckets a per-day percentage rate.
type Direction int

const (
	Flat Direction = iota
	Rising
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "flat"
	}
}

// Classify buckets pctPerDay against epsilon. Rates within ±epsilon count as
// flat.
func Classify(pctPerDay, epsilon float64) Direction {
	switch {
	case pctPerDay > epsilon:
		return Rising
	case pctPerDay < -epsilon:
		return Falling
	default:
		return Flat
	}
}

// Combined trend labels. Human-readable only; BUY/SELL decisions never read
// these.
const (
	LabelUptrendSustained   = "Uptrend Sustained"
	LabelUptrendSlowing     = "Uptrend Slowing"
	LabelTurningDown        = "Turning Down"
	LabelFlat               = "Flat"
	LabelTurningUp          = "Turning Up"
	LabelDowntrendSustained = "Downtrend Sustained"
	LabelDowntrendSlowing   = "Downtrend Slowing"
)

// CombineLabel folds the short- and long-window classifications into one of
// the seven combined labels. A lone flat long window demotes the short trend
// to "Slowing"; a lone flat short window reads as the move turning against
// the long trend; opposing windows are named for the short window's new
// direction; agreeing windows are "Sustained" when the short rate is at least
// as extreme as the long rate.
func CombineLabel(short, long Result, epsilon float64) string {
	s := Classify(short.PctPerDay, epsilon)
	l := Classify(long.PctPerDay, epsilon)

	switch {
	case s == Flat && l == Flat:
		return LabelFlat
	case l == Flat && s == Rising:
		return LabelUptrendSlowing
	case l == Flat && s == Falling:
		return LabelDowntrendSlowing
	case s == Flat && l == Rising:
		return LabelTurningDown
	case s == Flat && l == Falling:
		return LabelTurningUp
	case s == Rising && l == Falling:
		return LabelTurningUp
	case s == Falling && l == Rising:
		return LabelTurningDown
	}

	sustained := math.Abs(short.PctPerDay) >= math.Abs(long.PctPerDay)
	if s == Rising {
		if sustained {
			return LabelUptrendSustained
		}
		return LabelUptrendSlowing
	}
	if sustained {
		return LabelDowntrendSustained
	}
	return LabelDowntrendSlowing
}
