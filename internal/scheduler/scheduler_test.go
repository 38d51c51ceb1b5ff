package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 30 * time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2026, 2, 14, 10, 17, 23, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextTick(%v) = %v, want %v", now, next, want)
	}

	// On an exact boundary the next tick is the following bucket, never now.
	next = s.nextTick(want)
	if got := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC); !next.Equal(got) {
		t.Fatalf("nextTick on boundary = %v, want %v", next, got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: 30 * time.Minute}, zerolog.Nop())

	now := time.Date(2026, 2, 14, 10, 17, 23, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("nextTick = %v, want now+interval", got)
	}
}

func TestBucketStart(t *testing.T) {
	aligned := New(Options{Interval: 30 * time.Minute, AlignToStart: true}, zerolog.Nop())
	raw := New(Options{Interval: 30 * time.Minute}, zerolog.Nop())

	at := time.Date(2026, 2, 14, 10, 44, 9, 0, time.UTC)
	if got := aligned.bucketStart(at); !got.Equal(time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("aligned bucketStart = %v, want 10:30", got)
	}
	if got := raw.bucketStart(at); !got.Equal(at) {
		t.Fatalf("raw bucketStart = %v, want input unchanged", got)
	}
}
