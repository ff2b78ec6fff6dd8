package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// TradeStore handles persistent storage of the trading audit trail in
// SQLite. Every table is append-only: recovery and analysis always read
// the newest row rather than mutating history.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore opens (or creates) the audit database with WAL mode enabled.
func NewTradeStore(dbPath string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Configure SQLite for high-performance deterministic logging
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS buying_power (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			observed_at INTEGER NOT NULL,
			total_assets_micros INTEGER NOT NULL,
			total_margin_micros INTEGER NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			purpose TEXT NOT NULL,
			state TEXT NOT NULL,
			price_micros INTEGER NOT NULL,
			qty INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS error_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			operation TEXT NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_error_events_time ON error_events(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &TradeStore{db: db}, nil
}

// AppendBuyingPower records a buying-power observation. Rows are never
// updated; a derived value after a fill is simply a newer row.
func (s *TradeStore) AppendBuyingPower(ctx context.Context, bp domain.BuyingPowerSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO buying_power (observed_at, total_assets_micros, total_margin_micros, source) VALUES (?, ?, ?, ?)",
		int64(bp.ObservedUnixM), bp.TotalAssetsMicros, bp.TotalMarginMicros, string(bp.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to insert buying power: %w", err)
	}
	return nil
}

// LatestBuyingPower returns the most recent observation, or ok=false when
// the table is empty.
func (s *TradeStore) LatestBuyingPower(ctx context.Context) (domain.BuyingPowerSnapshot, bool, error) {
	var (
		observed int64
		assets   int64
		margin   int64
		source   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT observed_at, total_assets_micros, total_margin_micros, source FROM buying_power ORDER BY id DESC LIMIT 1",
	).Scan(&observed, &assets, &margin, &source)
	if err == sql.ErrNoRows {
		return domain.BuyingPowerSnapshot{}, false, nil
	}
	if err != nil {
		return domain.BuyingPowerSnapshot{}, false, fmt.Errorf("failed to query buying power: %w", err)
	}
	return domain.BuyingPowerSnapshot{
		ObservedUnixM:     quant.TimeStamp(observed),
		TotalAssetsMicros: assets,
		TotalMarginMicros: margin,
		Source:            domain.PowerSource(source),
	}, true, nil
}

// AppendOrderEvent records a state transition for an order.
func (s *TradeStore) AppendOrderEvent(ctx context.Context, at time.Time, o domain.Order, note string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO order_events (recorded_at, order_id, symbol, side, purpose, state, price_micros, qty, note) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		at.UnixMicro(), o.ID, o.Symbol, string(o.Side), string(o.Purpose), string(o.State),
		int64(o.PriceMicros), int64(o.Qty), note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order event: %w", err)
	}
	return nil
}

// AppendErrorEvent records a failed gateway operation for the rolling
// error-rate check.
func (s *TradeStore) AppendErrorEvent(ctx context.Context, at time.Time, operation, message string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO error_events (recorded_at, operation, message) VALUES (?, ?, ?)",
		at.UnixMicro(), operation, message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error event: %w", err)
	}
	return nil
}

// CountErrorsSince returns the number of error events recorded at or
// after the cutoff.
func (s *TradeStore) CountErrorsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM error_events WHERE recorded_at >= ?",
		cutoff.UnixMicro(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count error events: %w", err)
	}
	return n, nil
}

// LoadErrorTimesSince returns the timestamps of error events at or after
// the cutoff, oldest first. Used to re-seed the rolling error window
// after a restart so that a crash loop cannot reset the safety counter.
func (s *TradeStore) LoadErrorTimesSince(ctx context.Context, cutoff time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT recorded_at FROM error_events WHERE recorded_at >= ? ORDER BY recorded_at ASC",
		cutoff.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query error events: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var us int64
		if err := rows.Scan(&us); err != nil {
			return nil, fmt.Errorf("failed to scan error event: %w", err)
		}
		times = append(times, time.UnixMicro(us))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return times, nil
}

// Close closes the database connection.
func (s *TradeStore) Close() error {
	return s.db.Close()
}
