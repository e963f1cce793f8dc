package realtime

import "time"

// Cooldown tracks a single settle delay: once Mark is called, the owner should
// return to its resting state Delay later. It holds no owner state itself; the
// owner calls Expired from its timed loop and reacts.
type Cooldown struct {
	Delay   time.Duration
	EndedAt time.Time
}

// DefaultSettleDelay is how long a finished task stays visible before resetting.
const DefaultSettleDelay = 2 * time.Second

// Mark starts the cooldown at now.
func (c *Cooldown) Mark(now time.Time) {
	c.EndedAt = now
}

// Clear cancels a pending cooldown.
func (c *Cooldown) Clear() {
	c.EndedAt = time.Time{}
}

// Active reports whether a cooldown is pending.
func (c *Cooldown) Active() bool {
	return !c.EndedAt.IsZero()
}

// NextWake returns when the cooldown elapses, and whether one is pending.
func (c *Cooldown) NextWake(now time.Time) (time.Time, bool) {
	if c.EndedAt.IsZero() {
		return time.Time{}, false
	}
	next := c.EndedAt.Add(c.Delay)
	if now.After(next) {
		return now, true
	}
	return next, true
}

// Expired reports whether a pending cooldown has elapsed at now.
func (c *Cooldown) Expired(now time.Time) bool {
	if c.EndedAt.IsZero() {
		return false
	}
	return !now.Before(c.EndedAt.Add(c.Delay))
}
