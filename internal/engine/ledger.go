package engine

import (
	"sort"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
)

// OrderLedger is the engine's own belief about the orders and positions it
// has issued. It is the single recovery collection: there is exactly one
// map per kind, read and mutated through the same methods, so the writer
// can never delete from a different list than the one it scanned. The
// gateway remains ground truth; the ledger is rebuilt from gateway reports
// on startup and corrected by reconciliation every cycle.
//
// Mutated only by the control loop, so it carries no lock.
type OrderLedger struct {
	orders    map[string]*domain.Order
	positions map[string]*domain.Position
}

// NewOrderLedger creates an empty ledger.
func NewOrderLedger() *OrderLedger {
	return &OrderLedger{
		orders:    make(map[string]*domain.Order),
		positions: make(map[string]*domain.Position),
	}
}

// Track adds an order the controller has just submitted. The gateway id
// must already be assigned.
func (l *OrderLedger) Track(o *domain.Order) {
	if o.ID == "" {
		panic("ledger: tracking an order without a gateway id")
	}
	l.orders[o.ID] = o
}

// Order returns the tracked order with the given id, or nil.
func (l *OrderLedger) Order(id string) *domain.Order {
	return l.orders[id]
}

// Orders returns every tracked order, sorted by id for deterministic
// iteration.
func (l *OrderLedger) Orders() []*domain.Order {
	ids := make([]string, 0, len(l.orders))
	for id := range l.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.orders[id])
	}
	return out
}

// Working returns the tracked orders still occupying the book.
func (l *OrderLedger) Working() []*domain.Order {
	var out []*domain.Order
	for _, o := range l.Orders() {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}

// WorkingExits returns the open exit orders bound to the given position.
func (l *OrderLedger) WorkingExits(positionID string) []*domain.Order {
	var out []*domain.Order
	for _, o := range l.Working() {
		if o.Purpose.IsExit() && o.PositionID == positionID {
			out = append(out, o)
		}
	}
	return out
}

// Position returns the tracked position with the given id, or nil.
func (l *OrderLedger) Position(id string) *domain.Position {
	return l.positions[id]
}

// Positions returns every open position, sorted by id.
func (l *OrderLedger) Positions() []*domain.Position {
	ids := make([]string, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*domain.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.positions[id])
	}
	return out
}

// PutPosition adds or replaces a position.
func (l *OrderLedger) PutPosition(p *domain.Position) {
	l.positions[p.ID] = p
}

// HasOpenWork reports whether any order is still working or any position
// still open. The controller's re-entry counter only advances while this
// is false.
func (l *OrderLedger) HasOpenWork() bool {
	for _, o := range l.orders {
		if o.IsOpen() {
			return true
		}
	}
	for _, p := range l.positions {
		if !p.IsClosed() {
			return true
		}
	}
	return false
}

// Prune drops terminal orders and closed positions. Called after each
// reconciliation pass so the maps only carry live state.
func (l *OrderLedger) Prune() {
	for id, o := range l.orders {
		if o.State.Terminal() {
			delete(l.orders, id)
		}
	}
	for id, p := range l.positions {
		if p.IsClosed() {
			delete(l.positions, id)
		}
	}
}

// Clear empties the ledger. Used before a rebuild from gateway truth.
func (l *OrderLedger) Clear() {
	l.orders = make(map[string]*domain.Order)
	l.positions = make(map[string]*domain.Position)
}
