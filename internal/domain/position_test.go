package domain

import "testing"

func TestPosition_HoldRespectsOutstanding(t *testing.T) {
	p := &Position{ID: "p1", Outstanding: 200}

	if err := p.Hold(200); err != nil {
		t.Fatalf("Hold(200): %v", err)
	}
	if p.Unallocated() != 0 {
		t.Errorf("Unallocated = %d, want 0", p.Unallocated())
	}

	// Fully held: any further hold must be refused.
	if err := p.Hold(100); err == nil {
		t.Error("Hold beyond outstanding must fail")
	}
	if p.Held > p.Outstanding {
		t.Errorf("invariant broken: held %d > outstanding %d", p.Held, p.Outstanding)
	}
}

func TestPosition_ReleaseClamps(t *testing.T) {
	p := &Position{ID: "p1", Outstanding: 100, Held: 50}
	p.Release(80)
	if p.Held != 0 {
		t.Errorf("Held = %d, want 0 after over-release", p.Held)
	}
}

func TestPosition_ExtendAveragesFillPrice(t *testing.T) {
	p := &Position{ID: "p1"}
	p.Extend(100, 1000000000) // 100 @ 1000
	p.Extend(100, 1010000000) // 100 @ 1010

	if p.Outstanding != 200 {
		t.Fatalf("Outstanding = %d, want 200", p.Outstanding)
	}
	if p.AvgFillMicros != 1005000000 {
		t.Errorf("AvgFillMicros = %d, want 1005000000", p.AvgFillMicros)
	}
}

func TestPosition_ReduceReleasesHeld(t *testing.T) {
	p := &Position{ID: "p1", Outstanding: 200, Held: 200}
	p.Reduce(200)

	if !p.IsClosed() {
		t.Error("position should be closed")
	}
	if p.Held != 0 {
		t.Errorf("Held = %d, want 0", p.Held)
	}
}

func TestPosition_ReduceKeepsInvariant(t *testing.T) {
	p := &Position{ID: "p1", Outstanding: 300, Held: 250}
	p.Reduce(100)
	if p.Held > p.Outstanding {
		t.Errorf("invariant broken: held %d > outstanding %d", p.Held, p.Outstanding)
	}
}
