package cooldown

import (
	"time"

	"gacha-bot-backend/internal/domain/state"
)

// Throttle is the per (principal, action) rate limiter. Check both reads
// and records, so a caller must invoke it at most once per action
// attempt.
type Throttle struct {
	now func() time.Time
}

func New() *Throttle {
	return &Throttle{now: time.Now}
}

// NewWithClock is used by tests to control the clock.
func NewWithClock(now func() time.Time) *Throttle {
	return &Throttle{now: now}
}

// Check returns 0 and records the current time when the window has
// elapsed (the request proceeds), or the remaining whole seconds when it
// has not. A blocked attempt does not touch the stored timestamp, so
// hammering a command never extends its cooldown.
func (t *Throttle) Check(doc *state.Document, userID int64, action string, window time.Duration) int {
	nowMs := t.now().UnixMilli()
	key := state.CooldownKey(userID, action)

	if last, ok := doc.Cooldowns[key]; ok {
		remaining := last + window.Milliseconds() - nowMs
		if remaining > 0 {
			return int((remaining + 999) / 1000)
		}
	}

	doc.Cooldowns[key] = nowMs
	return 0
}
