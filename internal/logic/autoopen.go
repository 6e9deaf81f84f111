package logic

import "time"

// AutoOpenPolicy gates proximity triggers behind a re-trigger cooldown.
type AutoOpenPolicy struct {
	cooldown       time.Duration
	lastAutoOpenAt time.Time
	fired          bool
}

// NewAutoOpenPolicy creates a policy that allows one auto-open per cooldown.
func NewAutoOpenPolicy(cooldown time.Duration) *AutoOpenPolicy {
	return &AutoOpenPolicy{cooldown: cooldown}
}

// Consider reports whether a proximity trigger observed at now should open
// the door. The caller must consume the trigger when this returns true.
func (a *AutoOpenPolicy) Consider(trigger bool, now time.Time, sessionActive bool) bool {
	if !trigger || sessionActive {
		return false
	}
	if a.fired && now.Sub(a.lastAutoOpenAt) <= a.cooldown {
		return false
	}
	a.fired = true
	a.lastAutoOpenAt = now
	return true
}

// LastAutoOpen returns the time of the last accepted auto-open, and false if
// there has been none.
func (a *AutoOpenPolicy) LastAutoOpen() (time.Time, bool) {
	return a.lastAutoOpenAt, a.fired
}
