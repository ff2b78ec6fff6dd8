package market

import (
	"fmt"
	"time"
)

// Phase classifies a moment of the trading day.
type Phase int

const (
	PhasePreOpen Phase = iota
	PhaseMorning
	PhaseLunch
	PhaseAfternoon
	PhaseClosingAuction
	PhasePostClose
)

func (p Phase) String() string {
	switch p {
	case PhasePreOpen:
		return "PRE_OPEN"
	case PhaseMorning:
		return "MORNING"
	case PhaseLunch:
		return "LUNCH"
	case PhaseAfternoon:
		return "AFTERNOON"
	case PhaseClosingAuction:
		return "CLOSING_AUCTION"
	case PhasePostClose:
		return "POST_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// SessionTimes configures the clock; times are "15:04" strings in tz.
type SessionTimes struct {
	Timezone     string
	Open         string // morning session open
	LunchStart   string
	LunchEnd     string // afternoon session open
	Close        string
	Cutoff       string // last moment new entries are allowed
	ClosingGuard time.Duration
}

// Clock classifies wall-clock time into session phases and computes waits to
// phase boundaries. Pure given a time; does not read time.Now itself.
type Clock struct {
	loc        *time.Location
	open       int // minutes since midnight
	lunchStart int
	lunchEnd   int
	close      int
	cutoff     int
	guard      time.Duration
}

// NewClock builds a session clock from configured times.
func NewClock(st SessionTimes) (*Clock, error) {
	loc, err := time.LoadLocation(st.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market: bad timezone %q: %w", st.Timezone, err)
	}

	c := &Clock{loc: loc, guard: st.ClosingGuard}
	for _, f := range []struct {
		name string
		s    string
		dst  *int
	}{
		{"open", st.Open, &c.open},
		{"lunch_start", st.LunchStart, &c.lunchStart},
		{"lunch_end", st.LunchEnd, &c.lunchEnd},
		{"close", st.Close, &c.close},
		{"cutoff", st.Cutoff, &c.cutoff},
	} {
		m, err := parseClock(f.s)
		if err != nil {
			return nil, fmt.Errorf("market: bad %s time %q: %w", f.name, f.s, err)
		}
		*f.dst = m
	}

	if !(c.open < c.lunchStart && c.lunchStart < c.lunchEnd && c.lunchEnd < c.close) {
		return nil, fmt.Errorf("market: session times out of order: open %s lunch %s-%s close %s",
			st.Open, st.LunchStart, st.LunchEnd, st.Close)
	}
	return c, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (c *Clock) minutes(t time.Time) int {
	lt := t.In(c.loc)
	return lt.Hour()*60 + lt.Minute()
}

// Phase returns the session phase containing t.
func (c *Clock) Phase(t time.Time) Phase {
	m := c.minutes(t)
	guardStart := c.close - int(c.guard.Minutes())
	switch {
	case m < c.open:
		return PhasePreOpen
	case m < c.lunchStart:
		return PhaseMorning
	case m < c.lunchEnd:
		return PhaseLunch
	case m < guardStart:
		return PhaseAfternoon
	case m < c.close:
		return PhaseClosingAuction
	default:
		return PhasePostClose
	}
}

// WaitUntilTradable returns how long to sleep from t before trading is
// possible, and whether trading is possible at all today. A zero wait with
// ok=true means trade now.
func (c *Clock) WaitUntilTradable(t time.Time) (time.Duration, bool) {
	switch c.Phase(t) {
	case PhasePreOpen:
		return c.untilMinute(t, c.open), true
	case PhaseLunch:
		return c.untilMinute(t, c.lunchEnd), true
	case PhaseMorning, PhaseAfternoon:
		return 0, true
	default:
		// Closing auction and post-close: no more sessions today.
		return 0, false
	}
}

func (c *Clock) untilMinute(t time.Time, minute int) time.Duration {
	lt := t.In(c.loc)
	target := time.Date(lt.Year(), lt.Month(), lt.Day(), minute/60, minute%60, 0, 0, c.loc)
	d := target.Sub(lt)
	if d < 0 {
		return 0
	}
	return d
}

// AfterCutoff reports whether new entries are no longer allowed.
func (c *Clock) AfterCutoff(t time.Time) bool {
	return c.minutes(t) >= c.cutoff
}

// InClosingGuard reports whether t sits inside the closing-auction guard
// window, where everything must be unwound.
func (c *Clock) InClosingGuard(t time.Time) bool {
	p := c.Phase(t)
	return p == PhaseClosingAuction || p == PhasePostClose
}
