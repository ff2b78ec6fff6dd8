package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/internal/engine"
	"github.com/poi-ai/SPAFT-sub000/internal/gateway"
	"github.com/poi-ai/SPAFT-sub000/internal/infra"
	"github.com/poi-ai/SPAFT-sub000/internal/market"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
	"github.com/poi-ai/SPAFT-sub000/pkg/ticks"
)

// simulate runs the full trading loop against the in-process paper broker
// with a random-walk board, bounded by -duration. No network, no config
// file, no real money.
func main() {
	duration := flag.Duration("duration", 30*time.Second, "how long to run the simulation")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random walk seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	slog.Info("Starting paper simulation",
		slog.Duration("duration", *duration),
		slog.Int64("seed", *seed))

	paper := gateway.NewPaper(10_000_000*quant.PriceScale, "paper-pw", 50)
	paper.SetBoard(makeBoard(quant.MustParsePrice("1000")))

	ladder, err := ticks.Build(ticks.GroupStandard, quant.MustParsePrice("700"), quant.MustParsePrice("1300"))
	if err != nil {
		slog.Error("Ladder build failed", slog.Any("error", err))
		os.Exit(1)
	}

	// An always-open session so the simulation trades regardless of wall
	// clock. The cutoff still exercises the liquidation path if you run
	// across 23:58.
	clock, err := market.NewClock(market.SessionTimes{
		Timezone:     "Asia/Tokyo",
		Open:         "00:01",
		LunchStart:   "00:02",
		LunchEnd:     "00:03",
		Close:        "23:59",
		Cutoff:       "23:58",
		ClosingGuard: time.Minute,
	})
	if err != nil {
		slog.Error("Clock build failed", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := engine.NewOrderLedger()
	rec := engine.NewReconciler(ledger, paper, nil, logger)
	ctrl := engine.NewController(
		engine.ControllerConfig{
			Instrument: domain.Instrument{
				Symbol: "7203", Exchange: 1, PriceGroup: ticks.GroupStandard,
				LowerLimit: quant.MustParsePrice("700"), UpperLimit: quant.MustParsePrice("1300"),
				UnitSize: 100,
			},
			OrderLineTicks:         2,
			BenefitTicks:           3,
			LossCutTicks:           5,
			RequoteTicks:           2,
			ConsecutiveEmptyCycles: 3,
			MaintenanceMultiplier:  decimal.RequireFromString("0.9"),
			Password:               "paper-pw",
		},
		paper,
		&gateway.PollingSource{GW: paper},
		ledger,
		rec,
		clock,
		ladder,
		infra.NewPacer(100*time.Millisecond),
		infra.NewErrorWindow(60*time.Second, 5),
		nil, nil, nil,
		infra.NewLogNotifier(logger),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// Random-walk driver: one tick up or down every 200ms.
	go func() {
		rng := rand.New(rand.NewSource(*seed))
		price := quant.MustParsePrice("1000")
		tick := time.NewTicker(200 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				dir := ticks.Up
				if rng.Intn(2) == 0 {
					dir = ticks.Down
				}
				next, err := ladder.Shift(price, 1, dir)
				if err != nil {
					continue
				}
				price = next
				paper.SetBoard(makeBoard(price))
			}
		}
	}()

	if err := ctrl.Run(ctx); err != nil && err != context.DeadlineExceeded {
		slog.Error("Simulation loop failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(paper)
}

func makeBoard(bid quant.PriceMicros) *domain.BoardSnapshot {
	ask := bid + quant.PriceMicros(1*quant.PriceScale)
	return &domain.BoardSnapshot{
		Symbol:        "7203",
		ObservedUnixM: quant.TimeStamp(time.Now().UnixMicro()),
		BestBid:       domain.BoardLevel{PriceMicros: bid, Qty: 500},
		BestAsk:       domain.BoardLevel{PriceMicros: ask, Qty: 500},
		SessionStatus: domain.SessionOpen,
	}
}

func printSummary(paper *gateway.Paper) {
	ctx := context.Background()
	orders, _ := paper.GetOrders(ctx, "7203")
	positions, _ := paper.GetPositions(ctx, "7203")
	bp, _ := paper.GetBuyingPower(ctx)

	fmt.Println()
	fmt.Println("=== Simulation summary ===")
	var filled, cancelled int
	for _, o := range orders {
		switch o.State {
		case domain.StateFilled:
			filled++
		case domain.StateCancelled:
			cancelled++
		}
	}
	fmt.Printf("orders: %d total, %d filled, %d cancelled\n", len(orders), filled, cancelled)
	fmt.Printf("open positions: %d\n", len(positions))
	fmt.Printf("margin in use: %s yen\n", quant.PriceMicros(bp.TotalMarginMicros))
}
