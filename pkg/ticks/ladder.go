package ticks

import (
	"errors"
	"fmt"
	"sort"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/safe"
)

// Direction selects which way Shift walks the ladder.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "UP"
	}
	return "DOWN"
}

// ErrBuildFailed marks a ladder build whose tick walk did not land exactly on
// the upper bound. This guards against tick-table / price-limit mismatches
// that would corrupt every downstream price decision.
var ErrBuildFailed = errors.New("ticks: ladder build failed")

// ErrOffLadder marks a lookup for a price that is not a ladder member.
var ErrOffLadder = errors.New("ticks: price not on ladder")

// maxRungs bounds the build walk so a zero or corrupted tick can never make
// Build spin forever.
const maxRungs = 1 << 21

// Ladder enumerates every valid price between an instrument's lower and
// upper daily price limits. Immutable once built.
type Ladder struct {
	group  PriceGroup
	prices []quant.PriceMicros
}

// Build constructs the ladder for a group between lower and upper (both
// inclusive). The walk starts at lower and repeatedly adds the tick for the
// current price; overshooting upper or failing to terminate is a build
// failure, never a silently truncated ladder.
func Build(group PriceGroup, lower, upper quant.PriceMicros) (*Ladder, error) {
	if lower > upper {
		return nil, fmt.Errorf("%w: lower %s above upper %s", ErrBuildFailed, lower, upper)
	}

	prices := make([]quant.PriceMicros, 0, 256)
	cur := lower
	for {
		prices = append(prices, cur)
		if cur == upper {
			break
		}
		if len(prices) >= maxRungs {
			return nil, fmt.Errorf("%w: walk from %s exceeded %d rungs before reaching %s",
				ErrBuildFailed, lower, maxRungs, upper)
		}
		step, err := Tick(group, cur)
		if err != nil {
			return nil, err
		}
		if step <= 0 {
			return nil, fmt.Errorf("%w: non-positive tick %s at %s", ErrBuildFailed, step, cur)
		}
		cur = quant.PriceMicros(safe.Add(int64(cur), int64(step)))
		if cur > upper {
			return nil, fmt.Errorf("%w: walk overshot upper %s (landed on %s)",
				ErrBuildFailed, upper, cur)
		}
	}

	return &Ladder{group: group, prices: prices}, nil
}

// Group returns the price group the ladder was built from.
func (l *Ladder) Group() PriceGroup { return l.group }

// Len returns the number of rungs.
func (l *Ladder) Len() int { return len(l.prices) }

// Lower returns the first (lowest) rung.
func (l *Ladder) Lower() quant.PriceMicros { return l.prices[0] }

// Upper returns the last (highest) rung.
func (l *Ladder) Upper() quant.PriceMicros { return l.prices[len(l.prices)-1] }

// IndexOf returns the rung index of price, or ErrOffLadder.
func (l *Ladder) IndexOf(price quant.PriceMicros) (int, error) {
	i := sort.Search(len(l.prices), func(i int) bool { return l.prices[i] >= price })
	if i < len(l.prices) && l.prices[i] == price {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %s (group %s)", ErrOffLadder, price, l.group)
}

// Contains reports whether price is a ladder member.
func (l *Ladder) Contains(price quant.PriceMicros) bool {
	_, err := l.IndexOf(price)
	return err == nil
}

// Shift returns the price n rungs above or below price. When n would walk
// past either end the result clamps to the first/last rung; capping at the
// price limit is policy, not an error.
func (l *Ladder) Shift(price quant.PriceMicros, n int, dir Direction) (quant.PriceMicros, error) {
	idx, err := l.IndexOf(price)
	if err != nil {
		return 0, err
	}
	if dir == Down {
		idx -= n
	} else {
		idx += n
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.prices) {
		idx = len(l.prices) - 1
	}
	return l.prices[idx], nil
}

// Snap returns the highest rung at or below price, clamping to the ladder
// ends. Used to align an off-ladder reference price (e.g. an average fill)
// before shifting.
func (l *Ladder) Snap(price quant.PriceMicros) quant.PriceMicros {
	i := sort.Search(len(l.prices), func(i int) bool { return l.prices[i] > price })
	if i == 0 {
		return l.prices[0]
	}
	return l.prices[i-1]
}

// RungsBetween counts the rungs strictly between a and b (a below b). A zero
// gap (a == b) yields -1 as a sentinel. If walking the ladder never lands
// exactly on b the tick table disagrees with live market data; that is
// reported as an error, not coerced.
func (l *Ladder) RungsBetween(a, b quant.PriceMicros) (int, error) {
	if a == b {
		return -1, nil
	}
	if a > b {
		a, b = b, a
	}
	ia, err := l.IndexOf(a)
	if err != nil {
		return 0, err
	}
	ib, err := l.IndexOf(b)
	if err != nil {
		return 0, err
	}
	return ib - ia - 1, nil
}
