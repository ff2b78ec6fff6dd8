package domain

import (
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Purpose says why an order exists in the ladder.
type Purpose string

const (
	PurposeEntry      Purpose = "ENTRY"
	PurposeTakeProfit Purpose = "TAKE_PROFIT"
	PurposeStopLoss   Purpose = "STOP_LOSS"
)

// IsExit reports whether the order unwinds an existing position.
func (p Purpose) IsExit() bool {
	return p == PurposeTakeProfit || p == PurposeStopLoss
}

// State is the engine's belief about where an order sits in its lifecycle.
// Transitions happen only through reconciliation feedback, or through an
// explicit cancel-then-recreate issued by the controller.
type State string

const (
	StatePendingSubmit   State = "PENDING_SUBMIT"
	StateWorking         State = "WORKING"
	StateCancelRequested State = "CANCEL_REQUESTED"
	StateFilled          State = "FILLED"
	StateCancelled       State = "CANCELLED"
	StateRejected        State = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFilled || s == StateCancelled || s == StateRejected
}

// Order is one resting or pending order the engine has issued.
type Order struct {
	ID           string // assigned by the gateway on accept; empty while pending-submit
	Symbol       string
	Side         Side
	Purpose      Purpose
	PriceMicros  quant.PriceMicros // 0 means market
	Qty          quant.Shares
	State        State
	PositionID   string            // back-reference for exits; empty for entries
	TriggerPrice quant.PriceMicros // stop-loss threshold carried by exit orders
	CreatedUnixM quant.TimeStamp
	UpdatedUnixM quant.TimeStamp
}

// IsOpen reports whether the order still occupies the book (or soon will).
func (o *Order) IsOpen() bool {
	return !o.State.Terminal()
}

// IsMarket reports whether the order executes at any price.
func (o *Order) IsMarket() bool {
	return o.PriceMicros == 0
}

// OrderRequest is what the controller hands the gateway when submitting.
type OrderRequest struct {
	Symbol      string
	Exchange    int
	Side        Side
	Purpose     Purpose
	PriceMicros quant.PriceMicros // 0 submits a market order
	Qty         quant.Shares
	PositionID  string // set for margin-exit orders
}

// OrderReport is one gateway-authoritative row from a GetOrders call.
type OrderReport struct {
	ID            string
	Symbol        string
	Side          Side
	PriceMicros   quant.PriceMicros
	Qty           quant.Shares
	FilledQty     quant.Shares
	AvgFillMicros quant.PriceMicros
	State         State // already mapped from the wire status
	UpdatedUnixM  quant.TimeStamp
}

// PositionReport is one gateway-authoritative row from a GetPositions call.
type PositionReport struct {
	ID            string
	Symbol        string
	Side          Side // side of the open position
	Qty           quant.Shares
	HeldQty       quant.Shares // already bound by working exit orders
	AvgFillMicros quant.PriceMicros
}
