// Package ticks implements the exchange tick-size tables and the price
// ladder built from them. Everything here is pure and gateway-independent.
package ticks

import (
	"fmt"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// PriceGroup selects which tick-size rule applies to an instrument.
type PriceGroup int

const (
	// GroupStandard is the whole-yen table used by ordinary equities.
	GroupStandard PriceGroup = iota
	// GroupTOPIX100 is the fine-grained table (sub-yen ticks) used by
	// TOPIX100 constituents.
	GroupTOPIX100
)

func (g PriceGroup) String() string {
	switch g {
	case GroupStandard:
		return "STANDARD"
	case GroupTOPIX100:
		return "TOPIX100"
	default:
		return "UNKNOWN"
	}
}

// ParseGroup maps a config string to a PriceGroup.
func ParseGroup(s string) (PriceGroup, error) {
	switch s {
	case "standard", "STANDARD", "":
		return GroupStandard, nil
	case "topix100", "TOPIX100":
		return GroupTOPIX100, nil
	default:
		return 0, fmt.Errorf("ticks: unknown price group %q", s)
	}
}

// band maps prices strictly below UpTo onto a single tick size. A price
// sitting exactly on a boundary takes the next band's tick, so an ascending
// ladder walk crosses bands cleanly (1000 + 0.5 -> 1000.5, not 1000.1).
type band struct {
	UpTo quant.PriceMicros
	Tick quant.PriceMicros
}

// Band tables per group. Bands must be sorted ascending by UpTo and ticks
// must be non-decreasing; tickFor relies on both.
var (
	standardBands = []band{
		{quant.MustParsePrice("3000"), quant.MustParsePrice("1")},
		{quant.MustParsePrice("5000"), quant.MustParsePrice("5")},
		{quant.MustParsePrice("30000"), quant.MustParsePrice("10")},
		{quant.MustParsePrice("50000"), quant.MustParsePrice("50")},
		{quant.MustParsePrice("300000"), quant.MustParsePrice("100")},
		{quant.MustParsePrice("500000"), quant.MustParsePrice("500")},
		{quant.MustParsePrice("3000000"), quant.MustParsePrice("1000")},
		{quant.MustParsePrice("5000000"), quant.MustParsePrice("5000")},
	}
	standardAbove = quant.MustParsePrice("10000")

	topix100Bands = []band{
		{quant.MustParsePrice("1000"), quant.MustParsePrice("0.1")},
		{quant.MustParsePrice("3000"), quant.MustParsePrice("0.5")},
		{quant.MustParsePrice("10000"), quant.MustParsePrice("1")},
		{quant.MustParsePrice("30000"), quant.MustParsePrice("5")},
		{quant.MustParsePrice("100000"), quant.MustParsePrice("10")},
		{quant.MustParsePrice("300000"), quant.MustParsePrice("50")},
		{quant.MustParsePrice("1000000"), quant.MustParsePrice("100")},
		{quant.MustParsePrice("3000000"), quant.MustParsePrice("500")},
	}
	topix100Above = quant.MustParsePrice("1000")
)

// Tick returns the minimum price increment for the given group at the given
// price. The mapping is deterministic and non-decreasing in price within a
// group.
func Tick(group PriceGroup, price quant.PriceMicros) (quant.PriceMicros, error) {
	switch group {
	case GroupStandard:
		return tickFor(standardBands, standardAbove, price), nil
	case GroupTOPIX100:
		return tickFor(topix100Bands, topix100Above, price), nil
	default:
		return 0, fmt.Errorf("ticks: unknown price group %d", group)
	}
}

func tickFor(bands []band, above quant.PriceMicros, price quant.PriceMicros) quant.PriceMicros {
	for _, b := range bands {
		if price < b.UpTo {
			return b.Tick
		}
	}
	return above
}
