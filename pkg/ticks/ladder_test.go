package ticks

import (
	"errors"
	"testing"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

func mustBuild(t *testing.T, group PriceGroup, lower, upper string) *Ladder {
	t.Helper()
	l, err := Build(group, quant.MustParsePrice(lower), quant.MustParsePrice(upper))
	if err != nil {
		t.Fatalf("Build(%s, %s, %s): %v", group, lower, upper, err)
	}
	return l
}

func TestBuild_LandsOnUpper(t *testing.T) {
	tests := []struct {
		group        PriceGroup
		lower, upper string
		wantLen      int
	}{
		{GroupStandard, "1000", "1010", 11},
		{GroupStandard, "2995", "3010", 8}, // 2995..3000 by 1, then 3005, 3010
		{GroupTOPIX100, "999.5", "1001", 8},
		{GroupTOPIX100, "950", "950", 1},
	}
	for _, tt := range tests {
		l := mustBuild(t, tt.group, tt.lower, tt.upper)
		if l.Len() != tt.wantLen {
			t.Errorf("Build(%s, %s, %s): len = %d, want %d",
				tt.group, tt.lower, tt.upper, l.Len(), tt.wantLen)
		}
		if l.Lower() != quant.MustParsePrice(tt.lower) || l.Upper() != quant.MustParsePrice(tt.upper) {
			t.Errorf("Build(%s, %s, %s): bounds %s..%s", tt.group, tt.lower, tt.upper, l.Lower(), l.Upper())
		}
	}
}

func TestBuild_OvershootIsFailure(t *testing.T) {
	// 1010.5 is not reachable by whole-yen ticks from 1000.
	_, err := Build(GroupStandard, quant.MustParsePrice("1000"), quant.MustParsePrice("1010.5"))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
}

func TestBuild_LowerAboveUpperIsFailure(t *testing.T) {
	_, err := Build(GroupStandard, quant.MustParsePrice("2000"), quant.MustParsePrice("1000"))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
}

func TestShift_UpDownInverse(t *testing.T) {
	l := mustBuild(t, GroupTOPIX100, "990", "1010")

	// For interior points, shifting up n then down n must return to start.
	for _, p := range []string{"995", "999.9", "1000.5", "1005"} {
		price := quant.MustParsePrice(p)
		for n := 1; n <= 3; n++ {
			up, err := l.Shift(price, n, Up)
			if err != nil {
				t.Fatalf("Shift(%s, %d, Up): %v", p, n, err)
			}
			back, err := l.Shift(up, n, Down)
			if err != nil {
				t.Fatalf("Shift(%s, %d, Down): %v", up, n, err)
			}
			if back != price {
				t.Errorf("Shift inverse broken: %s -> %s -> %s (n=%d)", price, up, back, n)
			}
		}
	}
}

func TestShift_ClampsAtLimits(t *testing.T) {
	l := mustBuild(t, GroupStandard, "1000", "1010")

	got, err := l.Shift(quant.MustParsePrice("1009"), 50, Up)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if got != l.Upper() {
		t.Errorf("Shift up past limit = %s, want clamp to %s", got, l.Upper())
	}

	got, err = l.Shift(quant.MustParsePrice("1001"), 50, Down)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if got != l.Lower() {
		t.Errorf("Shift down past limit = %s, want clamp to %s", got, l.Lower())
	}
}

func TestShift_OffLadderPrice(t *testing.T) {
	l := mustBuild(t, GroupStandard, "1000", "1010")
	if _, err := l.Shift(quant.MustParsePrice("1000.5"), 1, Up); !errors.Is(err, ErrOffLadder) {
		t.Fatalf("expected ErrOffLadder, got %v", err)
	}
}

func TestSnap(t *testing.T) {
	l := mustBuild(t, GroupStandard, "1000", "1010")
	tests := []struct {
		in, want string
	}{
		{"1004.7", "1004"},
		{"1004", "1004"},
		{"900", "1000"},  // below ladder clamps to lower
		{"2000", "1010"}, // above ladder clamps to upper
	}
	for _, tt := range tests {
		if got := l.Snap(quant.MustParsePrice(tt.in)); got != quant.MustParsePrice(tt.want) {
			t.Errorf("Snap(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRungsBetween(t *testing.T) {
	l := mustBuild(t, GroupStandard, "990", "1020")

	n, err := l.RungsBetween(quant.MustParsePrice("1000"), quant.MustParsePrice("1010"))
	if err != nil {
		t.Fatalf("RungsBetween: %v", err)
	}
	if n != 9 {
		t.Errorf("RungsBetween(1000, 1010) = %d, want 9", n)
	}

	// Equal prices yield the no-gap sentinel.
	n, err = l.RungsBetween(quant.MustParsePrice("1000"), quant.MustParsePrice("1000"))
	if err != nil {
		t.Fatalf("RungsBetween: %v", err)
	}
	if n != -1 {
		t.Errorf("RungsBetween(a, a) = %d, want -1", n)
	}

	// Adjacent rungs have nothing between them.
	n, err = l.RungsBetween(quant.MustParsePrice("1000"), quant.MustParsePrice("1001"))
	if err != nil {
		t.Fatalf("RungsBetween: %v", err)
	}
	if n != 0 {
		t.Errorf("RungsBetween(1000, 1001) = %d, want 0", n)
	}

	// An off-ladder endpoint is a tick-table mismatch, not a zero.
	if _, err := l.RungsBetween(quant.MustParsePrice("1000"), quant.MustParsePrice("1009.5")); !errors.Is(err, ErrOffLadder) {
		t.Fatalf("expected ErrOffLadder, got %v", err)
	}
}
