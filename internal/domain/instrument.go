package domain

import (
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

// Instrument describes the single symbol an engine instance trades.
type Instrument struct {
	Symbol     string           // exchange symbol code, e.g. "7203"
	Exchange   int              // exchange/market id the gateway expects
	PriceGroup ticks.PriceGroup // selects the tick-size rule
	UpperLimit quant.PriceMicros
	LowerLimit quant.PriceMicros
	UnitSize   quant.Shares // shares per trading lot
}

// Ladder builds the full price ladder between the instrument's daily limits.
func (i Instrument) Ladder() (*ticks.Ladder, error) {
	return ticks.Build(i.PriceGroup, i.LowerLimit, i.UpperLimit)
}
