package market

import (
	"testing"
	"time"
)

func testClock(t *testing.T) *Clock {
	t.Helper()
	c, err := NewClock(SessionTimes{
		Timezone:     "Asia/Tokyo",
		Open:         "09:00",
		LunchStart:   "11:30",
		LunchEnd:     "12:30",
		Close:        "15:00",
		Cutoff:       "14:45",
		ClosingGuard: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	return c
}

func jst(t *testing.T, hhmm string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", "2024-06-03 "+hhmm, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return parsed
}

func TestClock_Phase(t *testing.T) {
	c := testClock(t)
	tests := []struct {
		at   string
		want Phase
	}{
		{"08:15", PhasePreOpen},
		{"09:00", PhaseMorning},
		{"11:29", PhaseMorning},
		{"11:30", PhaseLunch},
		{"12:29", PhaseLunch},
		{"12:30", PhaseAfternoon},
		{"14:54", PhaseAfternoon},
		{"14:55", PhaseClosingAuction},
		{"15:00", PhasePostClose},
		{"18:00", PhasePostClose},
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			if got := c.Phase(jst(t, tt.at)); got != tt.want {
				t.Errorf("Phase(%s) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestClock_WaitUntilTradable(t *testing.T) {
	c := testClock(t)

	// Pre-open waits until the morning open.
	d, ok := c.WaitUntilTradable(jst(t, "08:30"))
	if !ok || d != 30*time.Minute {
		t.Errorf("pre-open wait = %v, %v; want 30m, true", d, ok)
	}

	// Lunch waits until the afternoon open.
	d, ok = c.WaitUntilTradable(jst(t, "12:00"))
	if !ok || d != 30*time.Minute {
		t.Errorf("lunch wait = %v, %v; want 30m, true", d, ok)
	}

	// Mid-session: trade now.
	d, ok = c.WaitUntilTradable(jst(t, "10:00"))
	if !ok || d != 0 {
		t.Errorf("morning wait = %v, %v; want 0, true", d, ok)
	}

	// Post-close: done for the day.
	if _, ok = c.WaitUntilTradable(jst(t, "16:00")); ok {
		t.Error("post-close must not be tradable")
	}
}

func TestClock_CutoffAndGuard(t *testing.T) {
	c := testClock(t)

	if c.AfterCutoff(jst(t, "14:44")) {
		t.Error("14:44 is before cutoff")
	}
	if !c.AfterCutoff(jst(t, "14:45")) {
		t.Error("14:45 is at cutoff")
	}
	if c.InClosingGuard(jst(t, "14:30")) {
		t.Error("14:30 is outside the closing guard")
	}
	if !c.InClosingGuard(jst(t, "14:57")) {
		t.Error("14:57 is inside the closing guard")
	}
}

func TestNewClock_RejectsBadInput(t *testing.T) {
	_, err := NewClock(SessionTimes{
		Timezone: "Asia/Tokyo",
		Open:     "12:00", LunchStart: "11:30", LunchEnd: "12:30",
		Close: "15:00", Cutoff: "14:45",
	})
	if err == nil {
		t.Error("out-of-order session times must be rejected")
	}

	_, err = NewClock(SessionTimes{
		Timezone: "Mars/Olympus",
		Open:     "09:00", LunchStart: "11:30", LunchEnd: "12:30",
		Close: "15:00", Cutoff: "14:45",
	})
	if err == nil {
		t.Error("unknown timezone must be rejected")
	}
}
