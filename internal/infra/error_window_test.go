package infra

import (
	"testing"
	"time"
)

func TestErrorWindow_TripsExactlyOnce(t *testing.T) {
	w := NewErrorWindow(60*time.Second, 5)

	trips := 0
	for i := 0; i < 5; i++ {
		w.Record()
		if w.Tripped() {
			trips++
		}
	}
	if trips != 1 {
		t.Fatalf("trips = %d, want exactly 1 for 5 errors in window", trips)
	}

	// More errors after the breach do not re-trip until Reset.
	w.Record()
	if w.Tripped() {
		t.Error("breaker re-tripped without Reset")
	}

	w.Reset()
	if w.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", w.Count())
	}
}

func TestErrorWindow_OldErrorsExpire(t *testing.T) {
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	now := base
	w := NewErrorWindow(60*time.Second, 5)
	w.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		w.Record()
	}
	if w.Tripped() {
		t.Fatal("tripped below threshold")
	}

	// The 5th error lands after the first four have aged out.
	now = base.Add(2 * time.Minute)
	w.Record()
	if w.Count() != 1 {
		t.Errorf("Count = %d, want 1 after expiry", w.Count())
	}
	if w.Tripped() {
		t.Error("tripped with only one error in window")
	}
}

func TestErrorWindow_SeedCountsTowardBreach(t *testing.T) {
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	w := NewErrorWindow(60*time.Second, 5)
	w.now = func() time.Time { return base }

	w.Seed([]time.Time{
		base.Add(-10 * time.Second),
		base.Add(-20 * time.Second),
		base.Add(-30 * time.Second),
		base.Add(-90 * time.Second), // outside window, ignored
	})
	if w.Count() != 3 {
		t.Fatalf("Count = %d, want 3 (one seeded event expired)", w.Count())
	}

	w.Record()
	w.Record()
	if !w.Tripped() {
		t.Error("seeded + live errors must breach")
	}
}
