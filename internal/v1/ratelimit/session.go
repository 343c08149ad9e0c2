package ratelimit

import "time"

// SessionWindowMillis and SessionWindowCap bound the per-session inbound
// frame rate: a fixed window of width 2000 ms admitting at most 20 frames.
const (
	SessionWindowMillis = 2000
	SessionWindowCap    = 20
)

// SessionCounter is the per-session {windowStart, count} record. It is
// intentionally not thread-safe: callers (the hub router) mutate it only
// while holding the hub's single coarse lock, alongside every other
// shared table.
type SessionCounter struct {
	WindowStart time.Time
	Count       int
}

// Allow advances the window if needed, increments the counter, and reports
// whether the frame that triggered this call may be dispatched. The frame
// is always counted against the window, even when rejected.
func (c *SessionCounter) Allow(now time.Time) bool {
	if c.WindowStart.IsZero() || now.Sub(c.WindowStart) > SessionWindowMillis*time.Millisecond {
		c.WindowStart = now
		c.Count = 0
	}
	c.Count++
	return c.Count <= SessionWindowCap
}
