package domain

import (
	"fmt"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/safe"
)

// Position is one open margin position. Outstanding is the unfilled-exit
// quantity; Held is the part of Outstanding already bound by working exit
// orders. Invariant: 0 <= Held <= Outstanding at all times.
type Position struct {
	ID            string
	Symbol        string
	Side          Side // side of the entry that opened it
	Outstanding   quant.Shares
	Held          quant.Shares
	AvgFillMicros quant.PriceMicros
	OpenedUnixM   quant.TimeStamp
}

// Unallocated returns the outstanding quantity not yet covered by a working
// exit order.
func (p *Position) Unallocated() quant.Shares {
	return p.Outstanding - p.Held
}

// IsClosed reports whether the position has been fully unwound.
func (p *Position) IsClosed() bool {
	return p.Outstanding <= 0
}

// Hold binds qty shares to a working exit order.
func (p *Position) Hold(qty quant.Shares) error {
	if qty <= 0 {
		return fmt.Errorf("position %s: hold of %d shares", p.ID, qty)
	}
	if p.Held+qty > p.Outstanding {
		return fmt.Errorf("position %s: hold %d would exceed outstanding %d (held %d)",
			p.ID, qty, p.Outstanding, p.Held)
	}
	p.Held += qty
	return nil
}

// Release frees qty shares previously bound by an exit order that was
// cancelled or rejected. Clamped at zero; a stale release is benign.
func (p *Position) Release(qty quant.Shares) {
	p.Held -= qty
	if p.Held < 0 {
		p.Held = 0
	}
}

// Extend grows the position by a confirmed entry fill, recomputing the
// volume-weighted average fill price.
func (p *Position) Extend(qty quant.Shares, priceMicros quant.PriceMicros) {
	if qty <= 0 {
		return
	}
	total := safe.Add(
		safe.Mul(int64(p.AvgFillMicros), int64(p.Outstanding)),
		safe.Mul(int64(priceMicros), int64(qty)),
	)
	p.Outstanding += qty
	p.AvgFillMicros = quant.PriceMicros(safe.Div(total, int64(p.Outstanding)))
}

// Reduce shrinks the position by a confirmed exit fill, releasing the held
// allocation the exit order carried.
func (p *Position) Reduce(qty quant.Shares) {
	if qty <= 0 {
		return
	}
	p.Outstanding -= qty
	if p.Outstanding < 0 {
		p.Outstanding = 0
	}
	p.Release(qty)
	if p.Held > p.Outstanding {
		p.Held = p.Outstanding
	}
}
