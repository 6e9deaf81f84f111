package gpio

import (
	"fmt"
	"time"
)

// MaxOnLimit is the hard upper bound for any relay energize window.
const MaxOnLimit = 10 * time.Second

// Actuator drives the lock relay. The open duration is owned by the lock
// machine; the actuator only guarantees the relay is never held beyond maxOn.
type Actuator struct {
	out   Output
	maxOn time.Duration
	on    bool
	since time.Time
}

// NewActuator wraps out. maxOn is clamped to (0, MaxOnLimit].
func NewActuator(out Output, maxOn time.Duration) *Actuator {
	if maxOn <= 0 || maxOn > MaxOnLimit {
		maxOn = MaxOnLimit
	}
	return &Actuator{out: out, maxOn: maxOn}
}

// Energize drives the relay high. A relay that is already energized keeps its
// original start time.
func (a *Actuator) Energize(now time.Time) error {
	if a.on {
		return nil
	}
	if err := a.out.Set(true); err != nil {
		return fmt.Errorf("energize relay: %w", err)
	}
	a.on = true
	a.since = now
	return nil
}

// Release drives the relay low. Always writes the line, even if it is
// believed to be low already.
func (a *Actuator) Release() error {
	a.on = false
	if err := a.out.Set(false); err != nil {
		return fmt.Errorf("release relay: %w", err)
	}
	return nil
}

// Check releases the relay if it has been energized longer than maxOn.
// Returns true if it had to force the release.
func (a *Actuator) Check(now time.Time) (bool, error) {
	if !a.on || now.Sub(a.since) <= a.maxOn {
		return false, nil
	}
	return true, a.Release()
}

// Energized reports whether the relay is currently driven high.
func (a *Actuator) Energized() bool {
	return a.on
}

// MaxOn returns the effective watchdog bound.
func (a *Actuator) MaxOn() time.Duration {
	return a.maxOn
}
