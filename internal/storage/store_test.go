package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

func newTestStore(t *testing.T) *TradeStore {
	t.Helper()
	store, err := NewTradeStore(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTradeStore_BuyingPowerAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.LatestBuyingPower(ctx); err != nil || ok {
		t.Fatalf("empty table: ok=%v err=%v", ok, err)
	}

	first := domain.BuyingPowerSnapshot{
		ObservedUnixM:     quant.TimeStamp(1000),
		TotalAssetsMicros: 10_000_000 * quant.PriceScale,
		TotalMarginMicros: 0,
		Source:            domain.PowerGateway,
	}
	second := domain.BuyingPowerSnapshot{
		ObservedUnixM:     quant.TimeStamp(2000),
		TotalAssetsMicros: 10_000_000 * quant.PriceScale,
		TotalMarginMicros: 500_000 * quant.PriceScale,
		Source:            domain.PowerDerived,
	}

	if err := store.AppendBuyingPower(ctx, first); err != nil {
		t.Fatalf("Failed to append first: %v", err)
	}
	if err := store.AppendBuyingPower(ctx, second); err != nil {
		t.Fatalf("Failed to append second: %v", err)
	}

	latest, ok, err := store.LatestBuyingPower(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestBuyingPower: ok=%v err=%v", ok, err)
	}
	if latest.ObservedUnixM != 2000 {
		t.Errorf("latest observed = %d, want 2000", latest.ObservedUnixM)
	}
	if latest.Source != domain.PowerDerived {
		t.Errorf("latest source = %s, want DERIVED", latest.Source)
	}
	if latest.TotalMarginMicros != second.TotalMarginMicros {
		t.Errorf("latest margin = %d, want %d", latest.TotalMarginMicros, second.TotalMarginMicros)
	}
}

func TestTradeStore_OrderEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	o := domain.Order{
		ID:          "OR-0001",
		Symbol:      "7203",
		Side:        domain.SideBuy,
		Purpose:     domain.PurposeEntry,
		PriceMicros: quant.MustParsePrice("1000"),
		Qty:         100,
		State:       domain.StateWorking,
	}
	if err := store.AppendOrderEvent(ctx, time.Now(), o, "submitted"); err != nil {
		t.Fatalf("Failed to append order event: %v", err)
	}
	o.State = domain.StateFilled
	if err := store.AppendOrderEvent(ctx, time.Now(), o, "reconciled"); err != nil {
		t.Fatalf("Failed to append second event: %v", err)
	}
}

func TestTradeStore_ErrorWindowSeeding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	// Two stale errors outside the window, three fresh ones inside.
	for i, at := range []time.Time{
		base.Add(-5 * time.Minute),
		base.Add(-2 * time.Minute),
		base.Add(-30 * time.Second),
		base.Add(-10 * time.Second),
		base.Add(-1 * time.Second),
	} {
		if err := store.AppendErrorEvent(ctx, at, "SubmitOrder", "timeout"); err != nil {
			t.Fatalf("Failed to append error %d: %v", i, err)
		}
	}

	cutoff := base.Add(-60 * time.Second)
	n, err := store.CountErrorsSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountErrorsSince: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	times, err := store.LoadErrorTimesSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("LoadErrorTimesSince: %v", err)
	}
	if len(times) != 3 {
		t.Fatalf("loaded %d times, want 3", len(times))
	}
	if !times[0].Before(times[1]) || !times[1].Before(times[2]) {
		t.Error("times must come back oldest first")
	}
}
