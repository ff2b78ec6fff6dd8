package infra

import (
	"log/slog"
	"time"
)

// ErrorWindow counts trading-affecting errors in a trailing window and trips
// once when the count reaches the threshold. It is the circuit breaker
// feeding the force-liquidation transition: five errors inside the window
// produce exactly one trip, not five. Mutated only by the control loop, so
// it carries no lock.
type ErrorWindow struct {
	window    time.Duration
	threshold int
	events    []time.Time
	tripped   bool
	now       func() time.Time
}

// NewErrorWindow creates a breaker over a trailing window.
func NewErrorWindow(window time.Duration, threshold int) *ErrorWindow {
	return &ErrorWindow{
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// Record registers one error occurrence.
func (w *ErrorWindow) Record() {
	w.events = append(w.events, w.now())
	w.prune()
}

// Count returns how many errors fall inside the current window.
func (w *ErrorWindow) Count() int {
	w.prune()
	return len(w.events)
}

// Seed preloads historical error timestamps (e.g. from the audit store after
// a restart) so a crash-loop cannot dodge the breaker.
func (w *ErrorWindow) Seed(times []time.Time) {
	w.events = append(w.events, times...)
	w.prune()
}

// Tripped reports whether the error rate has breached the threshold. It
// returns true exactly once per breach; subsequent calls return false until
// Reset.
func (w *ErrorWindow) Tripped() bool {
	if w.tripped {
		return false
	}
	if w.Count() >= w.threshold {
		w.tripped = true
		slog.Warn("Error-rate breaker tripped",
			slog.Int("errors", len(w.events)),
			slog.Duration("window", w.window))
		return true
	}
	return false
}

// Reset clears the breach latch and the recorded events.
func (w *ErrorWindow) Reset() {
	w.events = w.events[:0]
	w.tripped = false
}

func (w *ErrorWindow) prune() {
	cutoff := w.now().Add(-w.window)
	i := 0
	for ; i < len(w.events); i++ {
		if w.events[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}
