package ratelimit

import (
	"time"
)

// Window is the trailing interval used for the per-minute quota.
const Window = time.Minute

// dateLayout formats the local calendar date used as the daily counter key.
const dateLayout = "2006-01-02"

// RollingWindow holds the timestamps of successful admissions within the
// trailing Window. It is not safe for concurrent use; the Limiter guards it.
type RollingWindow struct {
	stamps []time.Time
}

// Record appends an admission timestamp.
func (w *RollingWindow) Record(at time.Time) {
	w.stamps = append(w.stamps, at)
}

// Prune drops timestamps older than Window relative to now.
func (w *RollingWindow) Prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Count returns how many timestamps are younger than Window. It does not mutate.
func (w *RollingWindow) Count(now time.Time) int {
	cutoff := now.Add(-Window)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// WaitFor returns how long to wait until fewer than limit timestamps remain
// inside the window. Zero means a slot is free now.
func (w *RollingWindow) WaitFor(now time.Time, limit int) time.Duration {
	if limit <= 0 {
		return 0
	}
	cutoff := now.Add(-Window)
	live := make([]time.Time, 0, len(w.stamps))
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	if len(live) < limit {
		return 0
	}
	// The slot frees up when the entry that keeps us at the limit ages out.
	oldest := live[len(live)-limit]
	wait := oldest.Add(Window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// DailyCounter counts successful admissions for one local calendar date.
type DailyCounter struct {
	Count   int
	DateKey string
}

// Roll resets the counter when the date of now differs from DateKey.
func (c *DailyCounter) Roll(now time.Time, loc *time.Location) {
	key := now.In(loc).Format(dateLayout)
	if c.DateKey != key {
		c.DateKey = key
		c.Count = 0
	}
}

// Current returns the count for the date of now without mutating the counter.
func (c *DailyCounter) Current(now time.Time, loc *time.Location) int {
	if c.DateKey != now.In(loc).Format(dateLayout) {
		return 0
	}
	return c.Count
}

// Exhausted reports whether another admission would exceed limit.
// A non-positive limit disables the daily quota.
func (c *DailyCounter) Exhausted(limit int) bool {
	return limit > 0 && c.Count >= limit
}
