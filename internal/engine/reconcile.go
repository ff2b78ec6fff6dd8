package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/internal/gateway"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// AuditSink receives order state transitions for the append-only audit
// trail. The sqlite TradeStore satisfies it; a nil sink disables auditing.
type AuditSink interface {
	AppendOrderEvent(ctx context.Context, at time.Time, o domain.Order, note string) error
}

// mismatchGrace is how long a tracked order may go unreported by the
// gateway before reconciliation flags it. Freshly submitted orders can
// legitimately miss one report cycle.
const mismatchGrace = 3 * time.Second

// Reconciler diffs gateway-reported order and position state against the
// ledger and drives the order state machine. All transitions are keyed on
// a state difference, so applying the same gateway snapshot twice is a
// no-op.
type Reconciler struct {
	ledger *OrderLedger
	gw     gateway.BrokerGateway
	audit  AuditSink
	log    *slog.Logger
	now    func() time.Time
}

// NewReconciler wires a reconciler over the shared ledger. audit may be nil.
func NewReconciler(ledger *OrderLedger, gw gateway.BrokerGateway, audit AuditSink, log *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger: ledger,
		gw:     gw,
		audit:  audit,
		log:    log,
		now:    time.Now,
	}
}

// Sync fetches the gateway's authoritative state for the symbol and applies
// every transition the ledger has not yet seen. A reconciliation mismatch
// (tracked order absent from the gateway past the grace window) is logged
// and skipped; it self-heals next cycle.
func (r *Reconciler) Sync(ctx context.Context, symbol string) error {
	reports, err := r.gw.GetOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("reconcile: fetch orders: %w", err)
	}

	byID := make(map[string]domain.OrderReport, len(reports))
	for _, rep := range reports {
		byID[rep.ID] = rep
	}

	now := r.now()
	for _, o := range r.ledger.Orders() {
		rep, ok := byID[o.ID]
		if !ok {
			age := now.Sub(time.UnixMicro(int64(o.UpdatedUnixM)))
			if age > mismatchGrace {
				r.log.Warn("Reconciliation mismatch: tracked order missing from gateway",
					slog.String("order_id", o.ID),
					slog.Duration("age", age))
			}
			continue
		}
		if rep.State == o.State {
			continue
		}
		r.applyTransition(ctx, o, rep)
	}

	r.adoptPositionIDs(ctx)
	r.ledger.Prune()
	return nil
}

func (r *Reconciler) applyTransition(ctx context.Context, o *domain.Order, rep domain.OrderReport) {
	from := o.State
	o.State = rep.State
	o.UpdatedUnixM = rep.UpdatedUnixM

	switch rep.State {
	case domain.StateFilled:
		if o.Purpose == domain.PurposeEntry {
			r.applyEntryFill(ctx, o, rep)
		} else {
			r.applyExitFill(o, rep)
		}
	case domain.StateCancelled, domain.StateRejected:
		if o.Purpose.IsExit() {
			if pos := r.ledger.Position(o.PositionID); pos != nil {
				pos.Release(o.Qty)
			}
		}
	}

	r.log.Info("Order transition",
		slog.String("order_id", o.ID),
		slog.String("from", string(from)),
		slog.String("to", string(rep.State)),
		slog.String("purpose", string(o.Purpose)))

	if r.audit != nil {
		if err := r.audit.AppendOrderEvent(ctx, r.now(), *o, "reconciled from "+string(from)); err != nil {
			r.log.Warn("Audit append failed", slog.Any("error", err))
		}
	}
}

// applyEntryFill creates or extends the position the fill opened. The
// gateway does not tell us which position an entry extended, so fills
// attach to the existing same-side position for the symbol when one is
// open.
func (r *Reconciler) applyEntryFill(ctx context.Context, o *domain.Order, rep domain.OrderReport) {
	qty := rep.FilledQty
	if qty <= 0 {
		qty = o.Qty
	}
	price := rep.AvgFillMicros
	if price == 0 {
		price = o.PriceMicros
	}

	for _, pos := range r.ledger.Positions() {
		if pos.Symbol == o.Symbol && pos.Side == o.Side && !pos.IsClosed() {
			pos.Extend(qty, price)
			return
		}
	}

	pos := &domain.Position{
		// Until the next GetPositions pass reports the broker's own id,
		// the opening order id stands in for it.
		ID:            "via-" + o.ID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Outstanding:   qty,
		AvgFillMicros: price,
		OpenedUnixM:   rep.UpdatedUnixM,
	}
	r.ledger.PutPosition(pos)
	r.adoptPositionIDs(ctx)
}

func (r *Reconciler) applyExitFill(o *domain.Order, rep domain.OrderReport) {
	pos := r.ledger.Position(o.PositionID)
	if pos == nil {
		r.log.Warn("Exit fill for unknown position",
			slog.String("order_id", o.ID),
			slog.String("position_id", o.PositionID))
		return
	}
	qty := rep.FilledQty
	if qty <= 0 {
		qty = o.Qty
	}
	pos.Reduce(qty)
}

// adoptPositionIDs swaps provisional position ids for broker-assigned ones
// when the gateway reports a matching position. Exit orders referencing the
// provisional id are re-pointed. Runs on every Sync pass, so a transient
// GetPositions failure only delays adoption by one cycle.
func (r *Reconciler) adoptPositionIDs(ctx context.Context) {
	var provisional []*domain.Position
	for _, pos := range r.ledger.Positions() {
		if len(pos.ID) > 4 && pos.ID[:4] == "via-" {
			provisional = append(provisional, pos)
		}
	}
	if len(provisional) == 0 {
		return
	}

	for _, pos := range provisional {
		reports, err := r.gw.GetPositions(ctx, pos.Symbol)
		if err != nil {
			return // picked up next cycle
		}
		for _, rep := range reports {
			if rep.Side == pos.Side && r.ledger.Position(rep.ID) == nil {
				old := pos.ID
				delete(r.ledger.positions, old)
				pos.ID = rep.ID
				r.ledger.PutPosition(pos)
				for _, o := range r.ledger.Orders() {
					if o.PositionID == old {
						o.PositionID = rep.ID
					}
				}
				break
			}
		}
	}
}

// Rebuild discards the ledger and reconstructs it from gateway truth. Run
// at startup: after a crash the in-memory ledger is gone and any on-disk
// copy is stale, so gateway reports are the only state worth trusting.
func (r *Reconciler) Rebuild(ctx context.Context, symbol string) error {
	r.ledger.Clear()

	posReports, err := r.gw.GetPositions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("rebuild: fetch positions: %w", err)
	}
	for _, rep := range posReports {
		r.ledger.PutPosition(&domain.Position{
			ID:            rep.ID,
			Symbol:        rep.Symbol,
			Side:          rep.Side,
			Outstanding:   rep.Qty,
			Held:          rep.HeldQty,
			AvgFillMicros: rep.AvgFillMicros,
			OpenedUnixM:   quant.TimeStamp(r.now().UnixMicro()),
		})
	}

	ordReports, err := r.gw.GetOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("rebuild: fetch orders: %w", err)
	}
	for _, rep := range ordReports {
		if rep.State.Terminal() {
			continue
		}
		o := &domain.Order{
			ID:           rep.ID,
			Symbol:       rep.Symbol,
			Side:         rep.Side,
			Purpose:      domain.PurposeEntry,
			PriceMicros:  rep.PriceMicros,
			Qty:          rep.Qty,
			State:        rep.State,
			CreatedUnixM: rep.UpdatedUnixM,
			UpdatedUnixM: rep.UpdatedUnixM,
		}
		// An open order on the opposite side of an open position is an
		// exit bound to it; the wire report does not carry intent.
		for _, pos := range r.ledger.Positions() {
			if pos.Side == rep.Side.Opposite() && !pos.IsClosed() {
				o.Purpose = domain.PurposeTakeProfit
				o.PositionID = pos.ID
				break
			}
		}
		r.ledger.Track(o)
	}

	r.log.Info("Ledger rebuilt from gateway",
		slog.String("symbol", symbol),
		slog.Int("orders", len(r.ledger.Working())),
		slog.Int("positions", len(r.ledger.Positions())))
	return nil
}
