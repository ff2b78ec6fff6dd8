package infra

import (
	"context"
	"time"
)

// Pacer enforces the minimum interval between successive gateway calls.
// This is the explicit cooperative delay the broker's per-second rate limit
// relies on, not a scheduler guarantee. Used only from the single control
// loop, so it carries no lock.
type Pacer struct {
	minInterval time.Duration
	last        time.Time
	now         func() time.Time // injectable for tests
}

// NewPacer creates a pacer with the given minimum call spacing.
func NewPacer(minInterval time.Duration) *Pacer {
	return &Pacer{
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Wait blocks until at least minInterval has passed since the previous call,
// or the context ends.
func (p *Pacer) Wait(ctx context.Context) error {
	now := p.now()
	if !p.last.IsZero() {
		if remaining := p.minInterval - now.Sub(p.last); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
	p.last = p.now()
	return nil
}
