package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/internal/engine"
	"github.com/poi-ai/SPAFT-sub000/internal/gateway"
	"github.com/poi-ai/SPAFT-sub000/internal/infra"
	"github.com/poi-ai/SPAFT-sub000/internal/market"
	"github.com/poi-ai/SPAFT-sub000/internal/storage"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

// errorWindowSpan is the trailing window the error-rate breaker watches.
const errorWindowSpan = 60 * time.Second

// maxPushAge is how stale a pushed board snapshot may be before the
// controller falls back to polling.
const maxPushAge = 3 * time.Second

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config     *infra.Config
	Store      *storage.TradeStore
	Gateway    gateway.BrokerGateway
	Controller *engine.Controller

	feed   *gateway.BoardFeed
	unlock func()
}

// NewBootstrap creates an empty Bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every collaborator the trading
// loop needs. Nothing trades yet; Run does that.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	infra.PrintBanner(cfg)

	// Data isolation per mode: _workspace/data/{paper,real}/
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// One process per workspace: two loops sharing a WAL db and one
	// broker session corrupt both.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	store, err := storage.NewTradeStore(filepath.Join(dataDir, cfg.Storage.DBPath))
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("Trade store initialized (WAL-mode)",
		slog.String("mode", mode))

	gw, err := gateway.NewGateway(cfg)
	if err != nil {
		return err
	}
	b.Gateway = gw

	group, err := ticks.ParseGroup(cfg.Trading.PriceGroup)
	if err != nil {
		return err
	}
	lower, upper, err := cfg.Limits()
	if err != nil {
		return err
	}
	inst := domain.Instrument{
		Symbol:     cfg.Trading.Symbol,
		Exchange:   cfg.Trading.Exchange,
		PriceGroup: group,
		LowerLimit: lower,
		UpperLimit: upper,
		UnitSize:   quant.Shares(cfg.Trading.UnitSize),
	}
	ladder, err := inst.Ladder()
	if err != nil {
		return fmt.Errorf("price ladder for %s: %w", inst.Symbol, err)
	}
	slog.Info("Price ladder built",
		slog.String("symbol", inst.Symbol),
		slog.Int("rungs", ladder.Len()))

	clock, err := market.NewClock(market.SessionTimes{
		Timezone:     cfg.Session.Timezone,
		Open:         cfg.Session.Open,
		LunchStart:   cfg.Session.LunchStart,
		LunchEnd:     cfg.Session.LunchEnd,
		Close:        cfg.Session.Close,
		Cutoff:       cfg.Session.Cutoff,
		ClosingGuard: time.Duration(cfg.Session.ClosingGuardMin) * time.Minute,
	})
	if err != nil {
		return err
	}

	// Re-seed the breaker from persisted error events so a crash loop
	// cannot reset the safety counter.
	breaker := infra.NewErrorWindow(errorWindowSpan, cfg.Trading.ErrorRateThreshold)
	if seed, err := store.LoadErrorTimesSince(ctx, time.Now().Add(-errorWindowSpan)); err != nil {
		slog.Warn("Could not seed error window", slog.Any("error", err))
	} else if len(seed) > 0 {
		breaker.Seed(seed)
		slog.Warn("Error window seeded from previous run",
			slog.Int("errors", len(seed)))
	}

	polling := &gateway.PollingSource{GW: gw}
	var source gateway.BoardSource = polling
	if cfg.Gateway.WSURL != "" {
		b.feed = gateway.NewBoardFeed(cfg.Gateway.WSURL, cfg.Trading.Symbol)
		source = &gateway.PushSource{Feed: b.feed, Fallback: polling, MaxAge: maxPushAge}
	}

	mult, err := cfg.MaintenanceMultiplier()
	if err != nil {
		return err
	}

	ledger := engine.NewOrderLedger()
	rec := engine.NewReconciler(ledger, gw, store, logger)
	b.Controller = engine.NewController(
		engine.ControllerConfig{
			Instrument:             inst,
			OrderLineTicks:         cfg.Trading.OrderLineTicks,
			BenefitTicks:           cfg.Trading.BenefitTicks,
			LossCutTicks:           cfg.Trading.LossCutTicks,
			RequoteTicks:           cfg.Trading.RequoteTicks,
			ConsecutiveEmptyCycles: cfg.Trading.ConsecutiveEmptyCycles,
			MaintenanceMultiplier:  mult,
			Password:               cfg.Gateway.Password,
		},
		gw,
		source,
		ledger,
		rec,
		clock,
		ladder,
		infra.NewPacer(cfg.PacingInterval()),
		breaker,
		store, store, store,
		infra.NewLogNotifier(logger),
		logger,
	)
	return nil
}

// Run starts the push feed if configured and drives the controller until
// the session ends or the context is cancelled.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.feed != nil {
		b.feed.Start(ctx)
		defer b.feed.Stop()
	}
	return b.Controller.Run(ctx)
}

// Close releases the store and the instance lock.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}
