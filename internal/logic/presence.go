package logic

import "time"

// PresenceTracker rate-limits radar samples and derives motion and
// proximity from them.
type PresenceTracker struct {
	sampleInterval time.Duration
	holdOver       time.Duration
	thresholdCm    uint32

	state        PresenceState
	lastSampleAt time.Time
	sampled      bool
}

// PresenceUpdate describes the effect of one Ingest call.
type PresenceUpdate struct {
	// Accepted is false when the sample was dropped by the rate limit.
	Accepted bool
	// MotionChanged is true when the reported motion value flipped.
	MotionChanged bool
	Motion        bool
	Proximity     bool
}

// NewPresenceTracker creates a tracker. Samples closer together than
// sampleInterval are dropped; motion falls only after holdOver without a
// detection; a moving target nearer than thresholdCm raises proximity.
func NewPresenceTracker(sampleInterval, holdOver time.Duration, thresholdCm uint32) *PresenceTracker {
	return &PresenceTracker{
		sampleInterval: sampleInterval,
		holdOver:       holdOver,
		thresholdCm:    thresholdCm,
	}
}

// Ingest processes a sample taken at now.
func (p *PresenceTracker) Ingest(s PresenceSample, now time.Time) PresenceUpdate {
	if p.sampled && now.Sub(p.lastSampleAt) < p.sampleInterval {
		return PresenceUpdate{Motion: p.state.MotionPresent, Proximity: p.state.ProximityTrigger}
	}
	p.sampled = true
	p.lastSampleAt = now

	if s.StationaryDetected {
		p.state.LastMotionAt = now
		p.state.ProximityTrigger = false
	}
	// Moving is evaluated after stationary so it has the last word on proximity.
	if s.MovingDetected {
		p.state.LastMotionAt = now
		p.state.ProximityTrigger = s.MovingDistanceCm < p.thresholdCm
	}

	prev := p.state.MotionPresent
	if s.Detected() {
		p.state.MotionPresent = true
	} else if p.state.MotionPresent && now.Sub(p.state.LastMotionAt) > p.holdOver {
		p.state.MotionPresent = false
	}

	return PresenceUpdate{
		Accepted:      true,
		MotionChanged: prev != p.state.MotionPresent,
		Motion:        p.state.MotionPresent,
		Proximity:     p.state.ProximityTrigger,
	}
}

// ConsumeProximity clears the proximity trigger after it has been acted on.
func (p *PresenceTracker) ConsumeProximity() {
	p.state.ProximityTrigger = false
}

// State returns a copy of the current presence state.
func (p *PresenceTracker) State() PresenceState {
	return p.state
}
