// Package gateway defines the broker-terminal capability the engine
// consumes, its error taxonomy, and the in-process paper implementation used
// for tests and pre-production runs. The terminal's REST protocol itself is
// not implemented here; a real adapter satisfies BrokerGateway and is
// injected at bootstrap.
package gateway

import (
	"context"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
)

// BrokerGateway is the authoritative source of order/position/collateral
// state. The engine never trusts any local cache over what these calls
// report.
type BrokerGateway interface {
	// GetBoard returns the current order book for a symbol.
	GetBoard(ctx context.Context, symbol string) (*domain.BoardSnapshot, error)

	// SubmitOrder places an order and returns the gateway-assigned id.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error)

	// CancelOrder requests cancellation. The credential accompanies every
	// cancel on the wire and must never be logged.
	CancelOrder(ctx context.Context, orderID, password string) error

	// GetOrders returns today's orders for a symbol.
	GetOrders(ctx context.Context, symbol string) ([]domain.OrderReport, error)

	// GetPositions returns open margin positions for a symbol.
	GetPositions(ctx context.Context, symbol string) ([]domain.PositionReport, error)

	// GetBuyingPower returns current collateral.
	GetBuyingPower(ctx context.Context) (domain.BuyingPowerSnapshot, error)

	// UnregisterAllSymbols clears the exchange-side live-data subscription
	// list. Recovery action for the simultaneous-registration cap.
	UnregisterAllSymbols(ctx context.Context) error
}

// BoardSource abstracts where board snapshots come from: plain polling, or
// a push feed with polling fallback.
type BoardSource interface {
	Snapshot(ctx context.Context, symbol string) (*domain.BoardSnapshot, error)
}

// PollingSource fetches every snapshot through GetBoard.
type PollingSource struct {
	GW BrokerGateway
}

func (p *PollingSource) Snapshot(ctx context.Context, symbol string) (*domain.BoardSnapshot, error) {
	return p.GW.GetBoard(ctx, symbol)
}
