package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/poi-ai/SPAFT-sub000/internal/infra"
)

// Sentinel errors every BrokerGateway implementation maps its wire responses
// onto. The engine branches on these, never on raw status codes.
var (
	// ErrRegistrationLimit: the exchange's simultaneous symbol-subscription
	// cap was hit. Recoverable via UnregisterAllSymbols.
	ErrRegistrationLimit = errors.New("gateway: symbol registration limit exceeded")

	// ErrNotFound: the instrument does not exist. Dropped for the run.
	ErrNotFound = errors.New("gateway: instrument not found")

	// ErrInsufficientPower: the broker refused an order for lack of
	// collateral. Skipped silently, not an error condition.
	ErrInsufficientPower = errors.New("gateway: insufficient buying power")

	// ErrOrderNotFound: a cancel targeted an id the gateway no longer knows.
	ErrOrderNotFound = errors.New("gateway: order not found")
)

// Classify maps gateway call errors onto retry outcomes. Known terminal
// conditions are fatal for the attempt (the controller has dedicated
// handling for each); anything network-shaped is retryable.
func Classify(err error) infra.Outcome {
	switch {
	case err == nil:
		return infra.OutcomeOK
	case errors.Is(err, ErrRegistrationLimit),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientPower),
		errors.Is(err, ErrOrderNotFound):
		return infra.OutcomeFatal
	case errors.Is(err, context.Canceled):
		return infra.OutcomeFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return infra.OutcomeRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return infra.OutcomeRetryable
	}

	// Unrecognized gateway failures get the bounded retry, then escalate.
	return infra.OutcomeRetryable
}
