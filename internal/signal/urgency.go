package signal

import "math"

// Urgency compares the newest price against the immediately preceding stored
// sample. The move is urgent when its magnitude reaches urgentPct percent.
// Urgency is independent of the averaging logic and of the alert latch.
//
// A zero previous sample never raises urgency; there is no meaningful percent
// change from zero.
func Urgency(prev, current, urgentPct float64) (pctChange float64, urgent bool) {
	if prev == 0 {
		return 0, false
	}
	pctChange = (current - prev) / prev * 100
	return pctChange, math.Abs(pctChange) >= urgentPct
}
