package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/safe"
)

// Paper is the in-process broker simulator. It crosses resting limit orders
// against whatever board the driver pushes in, tracks margin positions and
// collateral, and returns the same typed errors a real terminal adapter
// maps onto. Used by the engine tests and by PAPER mode runs.
type Paper struct {
	mu sync.Mutex

	boards     map[string]*domain.BoardSnapshot
	orders     map[string]*paperOrder
	positions  map[string]*paperPosition
	registered map[string]bool

	orderSeq int
	posSeq   int

	assetsMicros int64
	marginMicros int64
	password     string
	regLimit     int

	// One-shot failure injection for tests.
	nextBoardErr  error
	nextSubmitErr error
	nextCancelErr error
}

type paperOrder struct {
	id        string
	req       domain.OrderRequest
	state     domain.State
	filledQty quant.Shares
	avgFill   quant.PriceMicros
	updated   quant.TimeStamp
}

type paperPosition struct {
	id          string
	symbol      string
	side        domain.Side
	outstanding quant.Shares
	held        quant.Shares
	avgFill     quant.PriceMicros
}

// NewPaper creates a simulator with the given virtual collateral.
func NewPaper(assetsMicros int64, password string, regLimit int) *Paper {
	return &Paper{
		boards:       make(map[string]*domain.BoardSnapshot),
		orders:       make(map[string]*paperOrder),
		positions:    make(map[string]*paperPosition),
		registered:   make(map[string]bool),
		assetsMicros: assetsMicros,
		password:     password,
		regLimit:     regLimit,
	}
}

// SetBoard publishes a new board snapshot and crosses resting orders
// against it. This is how tests and the simulator drive the market.
func (p *Paper) SetBoard(b *domain.BoardSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards[b.Symbol] = b
	p.crossLocked(b)
}

// FailNext injects a one-shot error into the next call of the given kind
// ("board", "submit" or "cancel").
func (p *Paper) FailNext(kind string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch kind {
	case "board":
		p.nextBoardErr = err
	case "submit":
		p.nextSubmitErr = err
	case "cancel":
		p.nextCancelErr = err
	default:
		panic("paper: unknown failure kind " + kind)
	}
}

func (p *Paper) GetBoard(ctx context.Context, symbol string) (*domain.BoardSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.nextBoardErr; err != nil {
		p.nextBoardErr = nil
		return nil, err
	}

	if !p.registered[symbol] {
		if p.regLimit > 0 && len(p.registered) >= p.regLimit {
			return nil, ErrRegistrationLimit
		}
		p.registered[symbol] = true
	}

	b, ok := p.boards[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return b, nil
}

func (p *Paper) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.nextSubmitErr; err != nil {
		p.nextSubmitErr = nil
		return "", err
	}
	if req.Qty <= 0 {
		return "", fmt.Errorf("paper: non-positive quantity %d", req.Qty)
	}

	if req.Purpose == domain.PurposeEntry {
		notional := p.entryNotionalLocked(req)
		if safe.Add(p.marginMicros, notional) > p.assetsMicros {
			return "", ErrInsufficientPower
		}
	} else {
		pos, ok := p.positions[req.PositionID]
		if !ok {
			return "", fmt.Errorf("%w: position %s", ErrOrderNotFound, req.PositionID)
		}
		if pos.held+req.Qty > pos.outstanding {
			return "", fmt.Errorf("paper: exit of %d exceeds unallocated %d on position %s",
				req.Qty, pos.outstanding-pos.held, req.PositionID)
		}
		pos.held += req.Qty
	}

	p.orderSeq++
	o := &paperOrder{
		id:      fmt.Sprintf("PO-%04d", p.orderSeq),
		req:     req,
		state:   domain.StateWorking,
		updated: quant.TimeStamp(time.Now().UnixMicro()),
	}
	p.orders[o.id] = o

	if b, ok := p.boards[req.Symbol]; ok {
		p.tryFillLocked(o, b)
	}
	return o.id, nil
}

func (p *Paper) CancelOrder(ctx context.Context, orderID, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.nextCancelErr; err != nil {
		p.nextCancelErr = nil
		return err
	}
	if password != p.password {
		return fmt.Errorf("paper: credential rejected")
	}

	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.state.Terminal() {
		return fmt.Errorf("paper: order %s already %s", orderID, o.state)
	}

	o.state = domain.StateCancelled
	o.updated = quant.TimeStamp(time.Now().UnixMicro())
	if o.req.Purpose.IsExit() {
		if pos, ok := p.positions[o.req.PositionID]; ok {
			pos.held -= o.req.Qty
			if pos.held < 0 {
				pos.held = 0
			}
		}
	}
	return nil
}

func (p *Paper) GetOrders(ctx context.Context, symbol string) ([]domain.OrderReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.orders))
	for id, o := range p.orders {
		if o.req.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	reports := make([]domain.OrderReport, 0, len(ids))
	for _, id := range ids {
		o := p.orders[id]
		reports = append(reports, domain.OrderReport{
			ID:            o.id,
			Symbol:        o.req.Symbol,
			Side:          o.req.Side,
			PriceMicros:   o.req.PriceMicros,
			Qty:           o.req.Qty,
			FilledQty:     o.filledQty,
			AvgFillMicros: o.avgFill,
			State:         o.state,
			UpdatedUnixM:  o.updated,
		})
	}
	return reports, nil
}

func (p *Paper) GetPositions(ctx context.Context, symbol string) ([]domain.PositionReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.positions))
	for id, pos := range p.positions {
		if pos.symbol == symbol && pos.outstanding > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	reports := make([]domain.PositionReport, 0, len(ids))
	for _, id := range ids {
		pos := p.positions[id]
		reports = append(reports, domain.PositionReport{
			ID:            pos.id,
			Symbol:        pos.symbol,
			Side:          pos.side,
			Qty:           pos.outstanding,
			HeldQty:       pos.held,
			AvgFillMicros: pos.avgFill,
		})
	}
	return reports, nil
}

func (p *Paper) GetBuyingPower(ctx context.Context) (domain.BuyingPowerSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.BuyingPowerSnapshot{
		ObservedUnixM:     quant.TimeStamp(time.Now().UnixMicro()),
		TotalAssetsMicros: p.assetsMicros,
		TotalMarginMicros: p.marginMicros,
		Source:            domain.PowerGateway,
	}, nil
}

func (p *Paper) UnregisterAllSymbols(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = make(map[string]bool)
	return nil
}

// entryNotionalLocked prices an entry for the margin check; market orders
// assume the current best ask.
func (p *Paper) entryNotionalLocked(req domain.OrderRequest) int64 {
	price := req.PriceMicros
	if price == 0 {
		if b, ok := p.boards[req.Symbol]; ok {
			price = b.BestAsk.PriceMicros
		}
	}
	return safe.Mul(int64(price), int64(req.Qty))
}

// crossLocked fills whatever the new board crosses.
func (p *Paper) crossLocked(b *domain.BoardSnapshot) {
	ids := make([]string, 0, len(p.orders))
	for id := range p.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := p.orders[id]
		if o.state == domain.StateWorking && o.req.Symbol == b.Symbol {
			p.tryFillLocked(o, b)
		}
	}
}

func (p *Paper) tryFillLocked(o *paperOrder, b *domain.BoardSnapshot) {
	var fillPrice quant.PriceMicros
	switch {
	case o.req.PriceMicros == 0: // market
		if o.req.Side == domain.SideBuy {
			fillPrice = b.BestAsk.PriceMicros
		} else {
			fillPrice = b.BestBid.PriceMicros
		}
		if fillPrice == 0 {
			return
		}
	case o.req.Side == domain.SideBuy:
		if b.BestAsk.PriceMicros == 0 || b.BestAsk.PriceMicros > o.req.PriceMicros {
			return
		}
		fillPrice = o.req.PriceMicros
	default: // sell limit
		if b.BestBid.PriceMicros == 0 || b.BestBid.PriceMicros < o.req.PriceMicros {
			return
		}
		fillPrice = o.req.PriceMicros
	}

	o.state = domain.StateFilled
	o.filledQty = o.req.Qty
	o.avgFill = fillPrice
	o.updated = quant.TimeStamp(time.Now().UnixMicro())

	if o.req.Purpose == domain.PurposeEntry {
		p.applyEntryFillLocked(o, fillPrice)
	} else {
		p.applyExitFillLocked(o)
	}

	slog.Debug("PAPER: order filled",
		slog.String("id", o.id),
		slog.String("side", string(o.req.Side)),
		slog.String("purpose", string(o.req.Purpose)),
		slog.String("price", fillPrice.String()),
		slog.Int64("qty", int64(o.req.Qty)))
}

func (p *Paper) applyEntryFillLocked(o *paperOrder, fillPrice quant.PriceMicros) {
	notional := safe.Mul(int64(fillPrice), int64(o.req.Qty))
	p.marginMicros = safe.Add(p.marginMicros, notional)

	// Extend an existing same-side position, else open one.
	for _, pos := range p.positions {
		if pos.symbol == o.req.Symbol && pos.side == o.req.Side && pos.outstanding > 0 {
			total := safe.Add(
				safe.Mul(int64(pos.avgFill), int64(pos.outstanding)),
				notional,
			)
			pos.outstanding += o.req.Qty
			pos.avgFill = quant.PriceMicros(safe.Div(total, int64(pos.outstanding)))
			return
		}
	}

	p.posSeq++
	pos := &paperPosition{
		id:          fmt.Sprintf("PP-%04d", p.posSeq),
		symbol:      o.req.Symbol,
		side:        o.req.Side,
		outstanding: o.req.Qty,
		avgFill:     fillPrice,
	}
	p.positions[pos.id] = pos
}

func (p *Paper) applyExitFillLocked(o *paperOrder) {
	pos, ok := p.positions[o.req.PositionID]
	if !ok {
		return
	}
	released := safe.Mul(int64(pos.avgFill), int64(o.req.Qty))
	p.marginMicros = safe.Sub(p.marginMicros, released)
	if p.marginMicros < 0 {
		p.marginMicros = 0
	}

	pos.outstanding -= o.req.Qty
	if pos.outstanding < 0 {
		pos.outstanding = 0
	}
	pos.held -= o.req.Qty
	if pos.held < 0 {
		pos.held = 0
	}
}
