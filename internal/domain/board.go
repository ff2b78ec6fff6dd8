package domain

import (
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// BoardLevel is one rung of the displayed order book.
type BoardLevel struct {
	PriceMicros quant.PriceMicros `json:"price"`
	Qty         quant.Shares      `json:"qty"`
}

// BoardSnapshot is one observation of the order book. Immutable; each poll
// replaces the previous snapshot wholesale, never mutates it in place.
type BoardSnapshot struct {
	Symbol        string            `json:"symbol"`
	ObservedUnixM quant.TimeStamp   `json:"observed"`
	BestBid       BoardLevel        `json:"best_bid"`
	BestAsk       BoardLevel        `json:"best_ask"`
	Bids          []BoardLevel      `json:"bids"` // best first
	Asks          []BoardLevel      `json:"asks"` // best first
	SessionStatus SessionStatus     `json:"session_status"`
	LastPrice     quant.PriceMicros `json:"last_price"`
}

// SessionStatus is the exchange-reported trading status carried on a board.
type SessionStatus int

const (
	SessionUnknown SessionStatus = iota
	SessionOpen
	SessionPaused // lunch recess or halt
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionOpen:
		return "OPEN"
	case SessionPaused:
		return "PAUSED"
	case SessionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// HasBothSides reports whether the snapshot carries a usable bid and ask.
func (b *BoardSnapshot) HasBothSides() bool {
	return b.BestBid.PriceMicros > 0 && b.BestAsk.PriceMicros > 0
}
