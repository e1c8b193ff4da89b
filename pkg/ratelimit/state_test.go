package ratelimit

import (
	"testing"
	"time"
)

func TestRollingWindow_PruneAndCount(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var w RollingWindow
	w.Record(base)
	w.Record(base.Add(10 * time.Second))
	w.Record(base.Add(50 * time.Second))

	now := base.Add(65 * time.Second)
	if got := w.Count(now); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if len(w.stamps) != 3 {
		t.Error("Count must not mutate the window")
	}

	w.Prune(now)
	if len(w.stamps) != 1 {
		t.Errorf("after Prune len = %d, want 1", len(w.stamps))
	}
}

func TestRollingWindow_WaitFor(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		stamps []time.Duration
		now    time.Duration
		limit  int
		want   time.Duration
	}{
		{name: "empty window", stamps: nil, now: 0, limit: 2, want: 0},
		{name: "below limit", stamps: []time.Duration{0}, now: time.Second, limit: 2, want: 0},
		{name: "at limit", stamps: []time.Duration{0, 10 * time.Second}, now: 20 * time.Second, limit: 2, want: 40 * time.Second},
		{name: "over limit uses entry keeping us at limit", stamps: []time.Duration{0, 5 * time.Second, 10 * time.Second}, now: 20 * time.Second, limit: 2, want: 45 * time.Second},
		{name: "aged out", stamps: []time.Duration{0, 10 * time.Second}, now: 61 * time.Second, limit: 2, want: 0},
		{name: "disabled", stamps: []time.Duration{0}, now: 0, limit: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w RollingWindow
			for _, s := range tt.stamps {
				w.Record(base.Add(s))
			}
			if got := w.WaitFor(base.Add(tt.now), tt.limit); got != tt.want {
				t.Errorf("WaitFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDailyCounter_Roll(t *testing.T) {
	loc := time.UTC
	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, loc)
	day2 := day1.Add(2 * time.Minute)

	var c DailyCounter
	c.Roll(day1, loc)
	c.Count = 7

	if got := c.Current(day1, loc); got != 7 {
		t.Errorf("Current(day1) = %d, want 7", got)
	}
	if got := c.Current(day2, loc); got != 0 {
		t.Errorf("Current(day2) = %d, want 0", got)
	}
	if c.Count != 7 {
		t.Error("Current must not mutate the counter")
	}

	c.Roll(day2, loc)
	if c.Count != 0 || c.DateKey != "2025-03-02" {
		t.Errorf("after Roll = %+v", c)
	}
}

func TestDailyCounter_Exhausted(t *testing.T) {
	c := DailyCounter{Count: 3}
	if !c.Exhausted(3) {
		t.Error("3/3 should be exhausted")
	}
	if c.Exhausted(4) {
		t.Error("3/4 should not be exhausted")
	}
	if c.Exhausted(0) {
		t.Error("limit 0 disables the daily quota")
	}
}
