package series

// Series keeps a bounded chronological price history for one symbol. Samples
// are appended newest-last; once capacity is reached the oldest samples are
// discarded. Insertion order is the only ordering and is never rewritten.
type Series struct {
	capacity int
	values   []float64
}

// New constructs an empty Series with a fixed capacity.
func New(capacity int) *Series {
	if capacity <= 0 {
		panic("series capacity must be positive")
	}
	return &Series{capacity: capacity}
}

// Restore rebuilds a Series from persisted values, keeping only the newest
// capacity samples when the stored sequence is longer.
func Restore(capacity int, values []float64) *Series {
	s := New(capacity)
	if len(values) > capacity {
		values = values[len(values)-capacity:]
	}
	s.values = append(s.values, values...)
	return s
}

// Append adds a sample to the end, dropping from the front when the series
// would exceed its capacity.
func (s *Series) Append(v float64) {
	s.values = append(s.values, v)
	if len(s.values) > s.capacity {
		s.values = s.values[len(s.values)-s.capacity:]
	}
}

// Len reports the number of retained samples.
func (s *Series) Len() int {
	return len(s.values)
}

// Cap reports the fixed capacity.
func (s *Series) Cap() int {
	return s.capacity
}

// Values returns the retained samples in chronological order. The slice is a
// copy and safe to hold.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Last returns the newest sample, or false when the series is empty.
func (s *Series) Last() (float64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[len(s.values)-1], true
}

// MeanLast returns the arithmetic mean of the last n samples. It reports
// false until at least n samples have accumulated; this is the gating
// average and must not fire early on an under-filled series.
func (s *Series) MeanLast(n int) (float64, bool) {
	if n <= 0 || len(s.values) < n {
		return 0, false
	}
	return Mean(s.values[len(s.values)-n:]), true
}

// MeanLastPartial returns the mean of up to the last n samples, using
// whatever is available. It reports false only when the series is empty.
// Display use only; signal gating goes through MeanLast.
func (s *Series) MeanLastPartial(n int) (float64, bool) {
	if n <= 0 || len(s.values) == 0 {
		return 0, false
	}
	if n > len(s.values) {
		n = len(s.values)
	}
	return Mean(s.values[len(s.values)-n:]), true
}

// Mean computes the arithmetic mean of values, 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
