package logic

import "time"

// Heartbeat decides when a periodic status report is due.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a heartbeat whose uptime is measured from startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, last: startTime}
}

// Check returns the uptime and true if interval has elapsed since the last
// heartbeat (or startup). An interval <= 0 disables heartbeats.
func (h *Heartbeat) Check(now time.Time, interval time.Duration) (time.Duration, bool) {
	if interval <= 0 {
		return 0, false
	}
	if now.Sub(h.last) < interval {
		return 0, false
	}
	h.last = now
	return now.Sub(h.startTime), true
}
