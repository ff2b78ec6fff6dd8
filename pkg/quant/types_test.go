package quant

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToPriceMicrosStr(t *testing.T) {
	tests := []struct {
		in   string
		want PriceMicros
	}{
		{"0", 0},
		{"950", 950000000},
		{"1234.5", 1234500000},
		{"0.1", 100000},
		{"5000000", 5000000000000},
		{"-12.25", -12250000},
		{"", 0},
		{"null", 0},
	}
	for _, tt := range tests {
		if got := ToPriceMicrosStr(tt.in); got != tt.want {
			t.Errorf("ToPriceMicrosStr(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromDecimal_RoundTrip(t *testing.T) {
	for _, s := range []string{"950", "1234.5", "0.1", "2999.9"} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("decimal parse %q: %v", s, err)
		}
		p := FromDecimal(d)
		if !p.Decimal().Equal(d) {
			t.Errorf("FromDecimal(%s).Decimal() = %s, want %s", s, p.Decimal(), d)
		}
	}
}

func TestPriceMicros_String(t *testing.T) {
	if got := PriceMicros(1234500000).String(); got != "1234.5" {
		t.Errorf("String() = %q, want %q", got, "1234.5")
	}
}

func TestPriceMicros_Yen(t *testing.T) {
	if got := PriceMicros(1234500000).Yen(); got != 1234 {
		t.Errorf("Yen() = %d, want 1234", got)
	}
}

func TestParseTimeStamp(t *testing.T) {
	ts, err := ParseTimeStamp("1700000000000")
	if err != nil {
		t.Fatalf("ParseTimeStamp: %v", err)
	}
	if ts != TimeStamp(1700000000000000) {
		t.Errorf("ParseTimeStamp = %d, want 1700000000000000", ts)
	}
	if _, err := ParseTimeStamp("abc"); err == nil {
		t.Error("Expected error for non-numeric timestamp")
	}
}
