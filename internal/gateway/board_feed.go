package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poi-ai/SPAFT-sub000/internal/domain"
	"github.com/poi-ai/SPAFT-sub000/internal/infra"
	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// boardMessage is the push-feed wire format for one board update. Prices
// arrive as decimal strings and are parsed fixed-point; float64 never
// touches a price.
type boardMessage struct {
	Symbol    string      `json:"symbol"`
	Last      json.Number `json:"last"`
	BidPrice  json.Number `json:"bid_price"`
	BidQty    int64       `json:"bid_qty"`
	AskPrice  json.Number `json:"ask_price"`
	AskQty    int64       `json:"ask_qty"`
	Status    int         `json:"status"`
	Timestamp json.Number `json:"ts"` // unix ms
}

// BoardFeed keeps a websocket subscription to the terminal's board push
// channel and caches the latest snapshot. It handles reconnection with
// exponential backoff, read deadlines, and thread-safe snapshot swaps; it
// never touches engine state, so the control loop stays single-threaded.
type BoardFeed struct {
	url    string
	symbol string

	mu     sync.RWMutex
	conn   *websocket.Conn
	latest *domain.BoardSnapshot
	at     time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	ReadTimeout time.Duration
}

// NewBoardFeed creates a feed for one symbol.
func NewBoardFeed(url, symbol string) *BoardFeed {
	return &BoardFeed{
		url:         url,
		symbol:      symbol,
		ReadTimeout: 60 * time.Second,
	}
}

// Start initiates the connection loop.
func (f *BoardFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.runLoop(ctx)
}

// Stop terminates the feed.
func (f *BoardFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.close()
	f.wg.Wait()
}

// Latest returns the most recent snapshot and when it arrived.
func (f *BoardFeed) Latest() (*domain.BoardSnapshot, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return nil, time.Time{}, false
	}
	return f.latest, f.at, true
}

func (f *BoardFeed) runLoop(ctx context.Context) {
	defer f.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			slog.Warn("Board feed connection failed",
				slog.String("symbol", f.symbol),
				slog.Int("retry", retry),
				slog.Any("error", err))
			delay := infra.CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		f.process()
	}
}

func (f *BoardFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	slog.Info("Board feed connected", slog.String("symbol", f.symbol))
	return nil
}

func (f *BoardFeed) process() {
	for {
		f.mu.RLock()
		c := f.conn
		f.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("Board feed read error",
				slog.String("symbol", f.symbol),
				slog.Any("error", err))
			f.close()
			return
		}
		f.onMessage(msg)
	}
}

func (f *BoardFeed) onMessage(msg []byte) {
	var bm boardMessage
	if err := json.Unmarshal(msg, &bm); err != nil {
		slog.Warn("Board feed message unparseable", slog.Any("error", err))
		return
	}
	if bm.Symbol != f.symbol {
		return
	}

	snap := &domain.BoardSnapshot{
		Symbol:    bm.Symbol,
		LastPrice: quant.ToPriceMicrosStr(bm.Last.String()),
		BestBid: domain.BoardLevel{
			PriceMicros: quant.ToPriceMicrosStr(bm.BidPrice.String()),
			Qty:         quant.Shares(bm.BidQty),
		},
		BestAsk: domain.BoardLevel{
			PriceMicros: quant.ToPriceMicrosStr(bm.AskPrice.String()),
			Qty:         quant.Shares(bm.AskQty),
		},
		SessionStatus: domain.SessionStatus(bm.Status),
	}
	if ts, err := quant.ParseTimeStamp(bm.Timestamp.String()); err == nil {
		snap.ObservedUnixM = ts
	}

	f.mu.Lock()
	f.latest = snap
	f.at = time.Now()
	f.mu.Unlock()
}

func (f *BoardFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// PushSource serves snapshots from a feed while they are fresh and falls
// back to polling when the feed is stale or empty.
type PushSource struct {
	Feed     *BoardFeed
	Fallback BoardSource
	MaxAge   time.Duration
}

func (p *PushSource) Snapshot(ctx context.Context, symbol string) (*domain.BoardSnapshot, error) {
	if snap, at, ok := p.Feed.Latest(); ok && time.Since(at) <= p.MaxAge {
		return snap, nil
	}
	if p.Fallback == nil {
		return nil, fmt.Errorf("board feed stale and no polling fallback configured")
	}
	return p.Fallback.Snapshot(ctx, symbol)
}
