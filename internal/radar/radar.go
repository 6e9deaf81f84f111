// Package radar adapts readings from the presence radar node into controller
// samples. The node publishes one JSON reading per frame and an availability
// flag; Feed keeps the newest reading until the run loop takes it.
package radar

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/door-lock/internal/logic"
)

// Reading is the JSON payload published by the radar node.
type Reading struct {
	Presence             bool   `json:"presence"`
	Stationary           bool   `json:"stationary"`
	StationaryDistanceCm uint32 `json:"stationary_distance_cm"`
	StationaryEnergy     uint8  `json:"stationary_energy"`
	Moving               bool   `json:"moving"`
	MovingDistanceCm     uint32 `json:"moving_distance_cm"`
	MovingEnergy         uint8  `json:"moving_energy"`
}

// ParseReading decodes a radar payload.
func ParseReading(payload []byte) (logic.PresenceSample, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return logic.PresenceSample{}, fmt.Errorf("decode radar reading: %w", err)
	}
	// Targets are only meaningful while the sensor reports presence.
	if !r.Presence {
		return logic.PresenceSample{}, nil
	}
	return logic.PresenceSample{
		StationaryDetected:   r.Stationary,
		StationaryDistanceCm: r.StationaryDistanceCm,
		StationaryEnergy:     r.StationaryEnergy,
		MovingDetected:       r.Moving,
		MovingDistanceCm:     r.MovingDistanceCm,
		MovingEnergy:         r.MovingEnergy,
	}, nil
}

// Feed holds the newest radar sample and the sensor availability.
// Safe for concurrent use: MQTT callbacks write, the run loop reads.
type Feed struct {
	mu        sync.Mutex
	stale     time.Duration
	sample    logic.PresenceSample
	fresh     bool
	lastAt    time.Time
	seen      bool
	available bool
}

// NewFeed creates a feed that reports the sensor as disconnected when no
// reading has arrived for stale.
func NewFeed(stale time.Duration) *Feed {
	return &Feed{stale: stale, available: true}
}

// Push stores a reading received at now.
func (f *Feed) Push(s logic.PresenceSample, now time.Time) {
	f.mu.Lock()
	f.sample = s
	f.fresh = true
	f.lastAt = now
	f.seen = true
	f.mu.Unlock()
}

// SetAvailability applies the node's availability message ("online"/"offline").
func (f *Feed) SetAvailability(payload string) {
	f.mu.Lock()
	f.available = strings.EqualFold(strings.TrimSpace(payload), "online")
	f.mu.Unlock()
}

// Take returns the newest unconsumed sample (nil if none arrived since the
// last call) and whether the sensor counts as connected at now.
func (f *Feed) Take(now time.Time) (*logic.PresenceSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	connected := f.available && f.seen && now.Sub(f.lastAt) <= f.stale
	if !f.fresh {
		return nil, connected
	}
	f.fresh = false
	s := f.sample
	return &s, connected
}

// Connected reports whether the sensor counts as connected at now.
func (f *Feed) Connected(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available && f.seen && now.Sub(f.lastAt) <= f.stale
}
