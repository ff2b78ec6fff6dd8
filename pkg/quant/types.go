package quant

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceMicros represents a price in yen multiplied by 1,000,000 (10^6).
// E.g., 1234.5 JPY = 1,234,500,000 PriceMicros.
// Sub-yen ticks (0.1, 0.5) are exact in this representation.
type PriceMicros int64

// Shares represents an order/position quantity in shares.
type Shares int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale = 1000000
)

// ToPriceMicros converts a float64 (from external API) to PriceMicros.
// Note: Only used at the boundary. Internal logic uses PriceMicros directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// FromDecimal converts an exact decimal (config/wire boundary) to PriceMicros.
func FromDecimal(d decimal.Decimal) PriceMicros {
	return PriceMicros(d.Mul(decimal.NewFromInt(PriceScale)).IntPart())
}

// Decimal converts a PriceMicros back to an exact decimal price.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -6)
}

// Yen returns the whole-yen part of the price, truncated.
func (p PriceMicros) Yen() int64 {
	return int64(p) / PriceScale
}

func (p PriceMicros) String() string {
	return p.Decimal().String()
}

func (q Shares) String() string {
	return strconv.FormatInt(int64(q), 10)
}

// ParseTimeStamp converts a millisecond string to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// ToPriceMicrosStr converts a numeric string to PriceMicros without float64.
func ToPriceMicrosStr(s string) PriceMicros {
	return PriceMicros(parseFixedPoint(s, 6))
}

// parseFixedPoint parses a numeric string into an int64 with the given precision.
// E.g., parseFixedPoint("1234.5", 6) -> 1,234,500,000.
func parseFixedPoint(s string, precision int) int64 {
	if s == "" || s == "null" {
		return 0
	}

	parts := []string{s}
	if dotIdx := strings.IndexByte(s, '.'); dotIdx != -1 {
		parts = []string{s[:dotIdx], s[dotIdx+1:]}
	}

	intPart, _ := strconv.ParseInt(parts[0], 10, 64)
	for i := 0; i < precision; i++ {
		intPart *= 10
	}

	if len(parts) < 2 {
		return intPart
	}

	fracStr := parts[1]
	if len(fracStr) > precision {
		fracStr = fracStr[:precision]
	}
	fracPart, _ := strconv.ParseInt(fracStr, 10, 64)

	// Pad fraction part with zeros if shorter than precision
	for i := len(fracStr); i < precision; i++ {
		fracPart *= 10
	}

	if strings.HasPrefix(parts[0], "-") {
		return intPart - fracPart
	}
	return intPart + fracPart
}

// MustParsePrice parses a decimal price string and panics on malformed input.
// Intended for static tick-band tables and tests, not wire data.
func MustParsePrice(s string) PriceMicros {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("quant: bad price literal %q: %v", s, err))
	}
	return FromDecimal(d)
}
