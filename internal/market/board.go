// Package market holds the read-side analysis the controller works from:
// normalizing board snapshots against the price ladder and classifying
// session time.
package market

import (
	"errors"
	"fmt"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

// ErrInconsistentBoard marks a board whose best bid/ask do not sit on the
// instrument's ladder. The tick table disagrees with live market data; the
// caller reports it rather than coercing prices.
var ErrInconsistentBoard = errors.New("market: board prices off ladder")

// NoGap is the EmptyRungs sentinel for a crossed-or-equal bid/ask.
const NoGap = -1

// Summary is the normalized view of one board snapshot.
type Summary struct {
	BestBid    domain.BoardLevel
	BestAsk    domain.BoardLevel
	EmptyRungs int // ladder rungs strictly between bid and ask; NoGap when equal
}

// Analyze normalizes a snapshot against the ladder. Equal bid/ask yields the
// NoGap sentinel; an off-ladder bid or ask yields ErrInconsistentBoard.
func Analyze(b *domain.BoardSnapshot, l *ticks.Ladder) (Summary, error) {
	s := Summary{BestBid: b.BestBid, BestAsk: b.BestAsk}
	if !b.HasBothSides() {
		return s, fmt.Errorf("%w: one-sided board (bid %s, ask %s)",
			ErrInconsistentBoard, b.BestBid.PriceMicros, b.BestAsk.PriceMicros)
	}

	rungs, err := l.RungsBetween(b.BestBid.PriceMicros, b.BestAsk.PriceMicros)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInconsistentBoard, err)
	}
	s.EmptyRungs = rungs
	return s, nil
}
