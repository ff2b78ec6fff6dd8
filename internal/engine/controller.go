package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/internal/gateway"
	"github.com/poi-ai/SPAFT-sub000/internal/infra"
	"github.com/poi-ai/SPAFT-sub000/internal/market"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/safe"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

// RunState is the controller's lifecycle state for one run.
type RunState int

const (
	StateAwaitingSession RunState = iota
	StateTrading
	StateForceLiquidating
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateAwaitingSession:
		return "AWAITING_SESSION"
	case StateTrading:
		return "TRADING"
	case StateForceLiquidating:
		return "FORCE_LIQUIDATING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

const (
	// DefaultLiquidationRecheck is the single post-liquidation delay before
	// the final open-state check. One re-check, then operator escalation;
	// liquidation is not a retry loop.
	DefaultLiquidationRecheck = 5 * time.Second

	submitAttempts = 3
	retryDelay     = 500 * time.Millisecond
)

// ErrorSink records failed gateway operations for the audit trail and for
// re-seeding the breaker after a restart.
type ErrorSink interface {
	AppendErrorEvent(ctx context.Context, at time.Time, operation, message string) error
}

// PowerSink records buying-power observations append-only.
type PowerSink interface {
	AppendBuyingPower(ctx context.Context, bp domain.BuyingPowerSnapshot) error
}

// ControllerConfig is the immutable per-run configuration.
type ControllerConfig struct {
	Instrument             domain.Instrument
	OrderLineTicks         int // entry distance below the touch
	BenefitTicks           int // take-profit distance above the base
	LossCutTicks           int // stop threshold distance below the base
	RequoteTicks           int // entry drift before cancel-and-requote
	ConsecutiveEmptyCycles int
	MaintenanceMultiplier  decimal.Decimal
	Password               string // cancel credential; never logged
	LiquidationRecheck     time.Duration
}

// Controller is the top-level scalping loop. Everything it owns is mutated
// from the single Run goroutine; the only concurrent collaborator is the
// board source, which hands over immutable snapshots.
type Controller struct {
	cfg     ControllerConfig
	gw      gateway.BrokerGateway
	boards  gateway.BoardSource
	ledger  *OrderLedger
	rec     *Reconciler
	clock   *market.Clock
	ladder  *ticks.Ladder
	pacer   *infra.Pacer
	breaker *infra.ErrorWindow
	errors  ErrorSink
	power   PowerSink
	audit   AuditSink
	notify  infra.Notifier
	log     *slog.Logger

	state       RunState
	emptyCycles int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewController wires the loop. errSink, powerSink and audit may be nil.
func NewController(
	cfg ControllerConfig,
	gw gateway.BrokerGateway,
	boards gateway.BoardSource,
	ledger *OrderLedger,
	rec *Reconciler,
	clock *market.Clock,
	ladder *ticks.Ladder,
	pacer *infra.Pacer,
	breaker *infra.ErrorWindow,
	errSink ErrorSink,
	powerSink PowerSink,
	audit AuditSink,
	notify infra.Notifier,
	log *slog.Logger,
) *Controller {
	if cfg.LiquidationRecheck == 0 {
		cfg.LiquidationRecheck = DefaultLiquidationRecheck
	}
	return &Controller{
		cfg:     cfg,
		gw:      gw,
		boards:  boards,
		ledger:  ledger,
		rec:     rec,
		clock:   clock,
		ladder:  ladder,
		pacer:   pacer,
		breaker: breaker,
		errors:  errSink,
		power:   powerSink,
		audit:   audit,
		notify:  notify,
		log:     log,
		state:   StateAwaitingSession,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() RunState { return c.state }

func (c *Controller) setState(s RunState) {
	if s == c.state {
		return
	}
	c.log.Info("Controller state change",
		slog.String("from", c.state.String()),
		slog.String("to", s.String()))
	c.state = s
}

// Run executes the state machine until the session ends, liquidation
// completes, or the context is cancelled. On startup the ledger is rebuilt
// from gateway truth; no in-memory or on-disk cache is trusted after a
// restart.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.rec.Rebuild(ctx, c.cfg.Instrument.Symbol); err != nil {
		return fmt.Errorf("controller: startup rebuild: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch c.state {
		case StateAwaitingSession:
			if err := c.awaitSession(ctx); err != nil {
				return err
			}
		case StateTrading:
			if err := c.cycle(ctx); err != nil {
				return err
			}
		case StateForceLiquidating:
			if err := c.liquidate(ctx); err != nil {
				return err
			}
			c.setState(StateStopped)
		case StateStopped:
			c.log.Info("Controller stopped")
			return nil
		}
	}
}

func (c *Controller) awaitSession(ctx context.Context) error {
	now := c.now()
	wait, tradable := c.clock.WaitUntilTradable(now)
	if !tradable {
		// Post-close or closing auction: if anything is still open the
		// day must not end with it.
		if c.ledger.HasOpenWork() {
			c.setState(StateForceLiquidating)
			return nil
		}
		c.setState(StateStopped)
		return nil
	}
	if wait > 0 {
		c.log.Info("Waiting for session",
			slog.String("phase", c.clock.Phase(now).String()),
			slog.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	c.setState(StateTrading)
	return nil
}

// cycle is one trading iteration: breaker check, board read, reconcile,
// exit maintenance, entry maintenance, cutoff check.
func (c *Controller) cycle(ctx context.Context) error {
	if c.breaker.Tripped() {
		c.alert(ctx, "error-rate breach, forcing liquidation")
		c.setState(StateForceLiquidating)
		return nil
	}

	now := c.now()
	switch c.clock.Phase(now) {
	case market.PhaseMorning, market.PhaseAfternoon:
	default:
		c.setState(StateAwaitingSession)
		return nil
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	board, ok := c.fetchBoard(ctx)
	if !ok {
		return nil // recorded; next cycle retries
	}
	sum, err := market.Analyze(board, c.ladder)
	if err != nil {
		c.recordError(ctx, "AnalyzeBoard", err)
		return nil
	}

	if err := c.rec.Sync(ctx, c.cfg.Instrument.Symbol); err != nil {
		c.recordError(ctx, "Reconcile", err)
		return nil
	}

	c.placeExits(ctx, sum)
	c.tightenStops(ctx, sum)
	c.requoteEntries(ctx, sum)
	c.maybeEnter(ctx, sum)

	now = c.now()
	if c.clock.AfterCutoff(now) || c.clock.InClosingGuard(now) {
		c.log.Info("Trading cutoff reached")
		c.setState(StateForceLiquidating)
	}
	return nil
}

// fetchBoard reads a snapshot, handling the registration-limit recovery
// path: unregister everything and retry the read once.
func (c *Controller) fetchBoard(ctx context.Context) (*domain.BoardSnapshot, bool) {
	symbol := c.cfg.Instrument.Symbol
	board, err := c.boards.Snapshot(ctx, symbol)
	if err == nil {
		return board, true
	}

	switch {
	case errors.Is(err, gateway.ErrRegistrationLimit):
		c.log.Warn("Symbol registration limit hit; unregistering all")
		if uerr := c.gw.UnregisterAllSymbols(ctx); uerr != nil {
			c.recordError(ctx, "UnregisterAllSymbols", uerr)
			return nil, false
		}
		board, err = c.boards.Snapshot(ctx, symbol)
		if err == nil {
			return board, true
		}
		c.recordError(ctx, "GetBoard", err)
		return nil, false

	case errors.Is(err, gateway.ErrNotFound):
		// Not retried: the symbol is gone for this run. Open work still
		// has to be flattened before the controller stops.
		c.alert(ctx, "instrument not found, dropping symbol",
			slog.String("symbol", symbol))
		if c.ledger.HasOpenWork() {
			c.setState(StateForceLiquidating)
		} else {
			c.setState(StateStopped)
		}
		return nil, false

	default:
		c.recordError(ctx, "GetBoard", err)
		return nil, false
	}
}

// placeExits covers every unallocated slice of every open position with a
// take-profit order.
func (c *Controller) placeExits(ctx context.Context, sum market.Summary) {
	for _, pos := range c.ledger.Positions() {
		qty := pos.Unallocated()
		if qty <= 0 {
			continue
		}

		base := c.exitBase(pos, sum)
		away, toward := ticks.Up, ticks.Down
		if pos.Side == domain.SideSell {
			away, toward = ticks.Down, ticks.Up
		}
		price, err := c.ladder.Shift(base, c.cfg.BenefitTicks, away)
		if err != nil {
			c.recordError(ctx, "ShiftExitPrice", err)
			continue
		}
		trigger, err := c.ladder.Shift(base, c.cfg.LossCutTicks, toward)
		if err != nil {
			c.recordError(ctx, "ShiftTriggerPrice", err)
			continue
		}

		o, err := c.submit(ctx, domain.OrderRequest{
			Symbol:      pos.Symbol,
			Exchange:    c.cfg.Instrument.Exchange,
			Side:        pos.Side.Opposite(),
			Purpose:     domain.PurposeTakeProfit,
			PriceMicros: price,
			Qty:         qty,
			PositionID:  pos.ID,
		}, trigger)
		if err != nil {
			continue
		}
		if err := pos.Hold(qty); err != nil {
			// Should be unreachable given the Unallocated guard; undo.
			c.log.Error("Hold failed after exit submit", slog.Any("error", err))
			c.cancel(ctx, o)
		}
	}
}

// exitBase picks the reference price an exit ladders away from: the better
// of fill price and current touch, snapped onto the ladder.
func (c *Controller) exitBase(pos *domain.Position, sum market.Summary) quant.PriceMicros {
	base := pos.AvgFillMicros
	if pos.Side == domain.SideBuy {
		if sum.BestBid.PriceMicros > base {
			base = sum.BestBid.PriceMicros
		}
	} else {
		if sum.BestAsk.PriceMicros < base {
			base = sum.BestAsk.PriceMicros
		}
	}
	return c.ladder.Snap(base)
}

// tightenStops converts a take-profit into a stop-loss when the market
// crosses the order's trigger. The replacement price only ever moves
// toward the market; risk tightens, never loosens.
func (c *Controller) tightenStops(ctx context.Context, sum market.Summary) {
	for _, o := range c.ledger.Working() {
		if !o.Purpose.IsExit() || o.TriggerPrice == 0 {
			continue
		}

		var crossed bool
		var stopPrice quant.PriceMicros
		if o.Side == domain.SideSell { // exiting a long
			crossed = sum.BestBid.PriceMicros <= o.TriggerPrice
			stopPrice = sum.BestBid.PriceMicros
		} else { // exiting a short
			crossed = sum.BestAsk.PriceMicros >= o.TriggerPrice
			stopPrice = sum.BestAsk.PriceMicros
		}
		if !crossed {
			continue
		}
		stopPrice = c.ladder.Snap(stopPrice)
		if o.Side == domain.SideSell && stopPrice >= o.PriceMicros {
			continue
		}
		if o.Side == domain.SideBuy && stopPrice <= o.PriceMicros {
			continue
		}

		if err := c.cancel(ctx, o); err != nil {
			continue
		}
		pos := c.ledger.Position(o.PositionID)
		if pos == nil {
			continue
		}
		c.log.Warn("Stop crossed; re-quoting exit at stop price",
			slog.String("order_id", o.ID),
			slog.String("trigger", o.TriggerPrice.String()),
			slog.String("stop", stopPrice.String()))

		no, err := c.submit(ctx, domain.OrderRequest{
			Symbol:      o.Symbol,
			Exchange:    c.cfg.Instrument.Exchange,
			Side:        o.Side,
			Purpose:     domain.PurposeStopLoss,
			PriceMicros: stopPrice,
			Qty:         o.Qty,
			PositionID:  o.PositionID,
		}, o.TriggerPrice)
		if err != nil {
			continue
		}
		if err := pos.Hold(no.Qty); err != nil {
			c.log.Error("Hold failed after stop re-quote", slog.Any("error", err))
			c.cancel(ctx, no)
		}
	}
}

// requoteEntries re-prices a resting entry when the touch has drifted past
// the configured threshold.
func (c *Controller) requoteEntries(ctx context.Context, sum market.Summary) {
	for _, o := range c.ledger.Working() {
		if o.Purpose != domain.PurposeEntry {
			continue
		}
		target, err := c.entryPrice(sum)
		if err != nil {
			c.recordError(ctx, "ShiftEntryPrice", err)
			return
		}
		if ticksApart(c.ladder, o.PriceMicros, target) < c.cfg.RequoteTicks {
			continue
		}

		c.log.Info("Re-quoting entry",
			slog.String("order_id", o.ID),
			slog.String("from", o.PriceMicros.String()),
			slog.String("to", target.String()))
		if err := c.cancel(ctx, o); err != nil {
			continue
		}
		c.submit(ctx, domain.OrderRequest{
			Symbol:      o.Symbol,
			Exchange:    c.cfg.Instrument.Exchange,
			Side:        o.Side,
			Purpose:     domain.PurposeEntry,
			PriceMicros: target,
			Qty:         o.Qty,
		}, 0)
	}
}

// maybeEnter submits a fresh entry once the book has been empty of our
// orders and positions for enough consecutive cycles. The multi-cycle wait
// guards against the read race between the order query and the position
// query making the book look momentarily empty.
func (c *Controller) maybeEnter(ctx context.Context, sum market.Summary) {
	if c.ledger.HasOpenWork() {
		c.emptyCycles = 0
		return
	}
	c.emptyCycles++
	if c.emptyCycles < c.cfg.ConsecutiveEmptyCycles {
		return
	}

	price, err := c.entryPrice(sum)
	if err != nil {
		c.recordError(ctx, "ShiftEntryPrice", err)
		return
	}
	qty := c.cfg.Instrument.UnitSize

	ok, err := c.capitalAllows(ctx, price, qty)
	if err != nil {
		c.recordError(ctx, "GetBuyingPower", err)
		return
	}
	if !ok {
		// Not an error: entries are simply skipped while collateral is thin.
		c.log.Debug("Entry skipped: insufficient buying power headroom")
		return
	}

	if _, err := c.submit(ctx, domain.OrderRequest{
		Symbol:      c.cfg.Instrument.Symbol,
		Exchange:    c.cfg.Instrument.Exchange,
		Side:        domain.SideBuy,
		Purpose:     domain.PurposeEntry,
		PriceMicros: price,
		Qty:         qty,
	}, 0); err == nil {
		c.emptyCycles = 0
	}
}

// entryPrice is the resting entry target: orderLineTicks below the touch.
func (c *Controller) entryPrice(sum market.Summary) (quant.PriceMicros, error) {
	return c.ladder.Shift(c.ladder.Snap(sum.BestBid.PriceMicros), c.cfg.OrderLineTicks, ticks.Down)
}

// capitalAllows applies the maintenance gate:
// assets × multiplier > margin + price × qty.
func (c *Controller) capitalAllows(ctx context.Context, price quant.PriceMicros, qty quant.Shares) (bool, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return false, err
	}
	bp, err := c.gw.GetBuyingPower(ctx)
	if err != nil {
		return false, err
	}
	if c.power != nil {
		if perr := c.power.AppendBuyingPower(ctx, bp); perr != nil {
			c.log.Warn("Buying-power append failed", slog.Any("error", perr))
		}
	}

	notional := safe.Mul(int64(price), int64(qty))
	headroom := decimal.NewFromInt(bp.TotalAssetsMicros).Mul(c.cfg.MaintenanceMultiplier)
	need := decimal.NewFromInt(safe.Add(bp.TotalMarginMicros, notional))
	return headroom.GreaterThan(need), nil
}

// submit sends one order with bounded retries and tracks it on success.
// Insufficient buying power is a silent skip, not an error event.
func (c *Controller) submit(ctx context.Context, req domain.OrderRequest, trigger quant.PriceMicros) (*domain.Order, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	var id string
	err := infra.Retry(ctx, "SubmitOrder", submitAttempts, retryDelay, gateway.Classify, func(ctx context.Context) error {
		var serr error
		id, serr = c.gw.SubmitOrder(ctx, req)
		return serr
	})
	if err != nil {
		if !errors.Is(err, gateway.ErrInsufficientPower) {
			c.recordError(ctx, "SubmitOrder", err)
		}
		return nil, err
	}

	now := quant.TimeStamp(c.now().UnixMicro())
	o := &domain.Order{
		ID:           id,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Purpose:      req.Purpose,
		PriceMicros:  req.PriceMicros,
		Qty:          req.Qty,
		State:        domain.StateWorking,
		PositionID:   req.PositionID,
		TriggerPrice: trigger,
		CreatedUnixM: now,
		UpdatedUnixM: now,
	}
	c.ledger.Track(o)
	c.log.Info("Order submitted",
		slog.String("order_id", id),
		slog.String("side", string(req.Side)),
		slog.String("purpose", string(req.Purpose)),
		slog.String("price", req.PriceMicros.String()),
		slog.Int64("qty", int64(req.Qty)))
	if c.audit != nil {
		if aerr := c.audit.AppendOrderEvent(ctx, c.now(), *o, "submitted"); aerr != nil {
			c.log.Warn("Audit append failed", slog.Any("error", aerr))
		}
	}
	return o, nil
}

// cancel revokes one order with bounded retries. The gateway's ack is
// authoritative, so the ledger transition happens here rather than waiting
// a cycle; reconciliation seeing the same terminal state later is a no-op.
func (c *Controller) cancel(ctx context.Context, o *domain.Order) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	o.State = domain.StateCancelRequested
	err := infra.Retry(ctx, "CancelOrder", submitAttempts, retryDelay, gateway.Classify, func(ctx context.Context) error {
		return c.gw.CancelOrder(ctx, o.ID, c.cfg.Password)
	})
	if err != nil {
		c.recordError(ctx, "CancelOrder", err)
		return err
	}

	o.State = domain.StateCancelled
	o.UpdatedUnixM = quant.TimeStamp(c.now().UnixMicro())
	if o.Purpose.IsExit() {
		if pos := c.ledger.Position(o.PositionID); pos != nil {
			pos.Release(o.Qty)
		}
	}
	if c.audit != nil {
		if aerr := c.audit.AppendOrderEvent(ctx, c.now(), *o, "cancelled"); aerr != nil {
			c.log.Warn("Audit append failed", slog.Any("error", aerr))
		}
	}
	return nil
}

// liquidate cancels every working order, market-exits every remaining
// position, re-checks once after a fixed delay, and escalates to the
// operator if anything survived. Terminal: no retry loop.
func (c *Controller) liquidate(ctx context.Context) error {
	symbol := c.cfg.Instrument.Symbol
	c.log.Warn("Force liquidation started", slog.String("symbol", symbol))

	for _, o := range c.ledger.Working() {
		c.cancel(ctx, o)
	}
	c.ledger.Prune()

	// Pick up fills that raced the cancels before sizing the exits.
	if err := c.rec.Sync(ctx, symbol); err != nil {
		c.log.Warn("Pre-exit reconcile failed", slog.Any("error", err))
	}

	for _, pos := range c.ledger.Positions() {
		qty := pos.Unallocated()
		if qty <= 0 {
			continue
		}
		o, err := c.submit(ctx, domain.OrderRequest{
			Symbol:     pos.Symbol,
			Exchange:   c.cfg.Instrument.Exchange,
			Side:       pos.Side.Opposite(),
			Purpose:    domain.PurposeStopLoss,
			Qty:        qty,
			PositionID: pos.ID,
		}, 0)
		if err != nil {
			continue
		}
		if herr := pos.Hold(o.Qty); herr != nil {
			c.log.Error("Hold failed during liquidation", slog.Any("error", herr))
		}
	}

	if err := c.sleep(ctx, c.cfg.LiquidationRecheck); err != nil {
		return err
	}
	if err := c.rec.Sync(ctx, symbol); err != nil {
		c.log.Warn("Post-liquidation reconcile failed", slog.Any("error", err))
	}

	if c.ledger.HasOpenWork() {
		c.alert(ctx, "liquidation incomplete: manual intervention required",
			slog.Int("open_orders", len(c.ledger.Working())),
			slog.Int("open_positions", len(c.ledger.Positions())))
	} else {
		c.log.Info("Liquidation complete")
	}
	return nil
}

// recordError logs, escalates to the operator channel, counts toward the
// breaker, and persists one failed trading-affecting operation.
func (c *Controller) recordError(ctx context.Context, op string, err error) {
	c.log.Error("Gateway operation failed",
		slog.String("op", op),
		slog.Any("error", err))
	c.alert(ctx, "Gateway operation failed: "+op,
		slog.String("op", op),
		slog.String("error", err.Error()))
	c.breaker.Record()
	if c.errors != nil {
		if serr := c.errors.AppendErrorEvent(ctx, c.now(), op, err.Error()); serr != nil {
			c.log.Warn("Error-event append failed", slog.Any("error", serr))
		}
	}
}

func (c *Controller) alert(ctx context.Context, msg string, attrs ...slog.Attr) {
	if c.notify != nil {
		c.notify.Alert(ctx, msg, attrs...)
	}
}

// ticksApart measures ladder distance between two prices in rungs.
// Off-ladder inputs count as maximally drifted so the caller re-quotes.
func ticksApart(l *ticks.Ladder, a, b quant.PriceMicros) int {
	if a == b {
		return 0
	}
	between, err := l.RungsBetween(a, b)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return between + 1
}
