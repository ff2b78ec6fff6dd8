package gateway

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/poi-ai/SPAFT-sub000/internal/infra"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// paperAssetsYen is the virtual collateral a PAPER run starts with.
const paperAssetsYen = 10_000_000

// NewGateway returns the gateway implementation for the configured mode.
func NewGateway(cfg *infra.Config) (BrokerGateway, error) {
	switch cfg.Trading.Mode {
	case "PAPER":
		slog.Info("Initializing paper gateway",
			slog.Int64("virtual_assets_yen", paperAssetsYen))
		return NewPaper(paperAssetsYen*quant.PriceScale, cfg.Gateway.Password, 50), nil

	case "REAL":
		// Safety latch: real trading demands an explicit operator opt-in
		// on top of the config mode.
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, fmt.Errorf("real trading requires CONFIRM_REAL_MONEY=true in the environment")
		}
		if cfg.Gateway.Password == "" {
			return nil, fmt.Errorf("real trading requires SPAFT_TRADE_PASSWORD")
		}
		// The terminal's REST adapter lives outside this module and is
		// injected by the embedding program.
		return nil, fmt.Errorf("no real terminal adapter is linked into this build; inject a BrokerGateway")

	default:
		return nil, fmt.Errorf("unknown trading mode: %s", cfg.Trading.Mode)
	}
}
