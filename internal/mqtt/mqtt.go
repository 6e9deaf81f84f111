// Package mqtt bridges the lock to a HomeKit accessory bridge over MQTT
// (homebridge-mqttthing style topics) and receives radar readings.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/door-lock/internal/logic"
)

// DefaultPrefix is the topic prefix for all lock topics.
const DefaultPrefix = "home/door/lock"

// DefaultRadarTopic is where the radar node publishes readings.
const DefaultRadarTopic = "home/door/radar"

// Topics holds every topic the bridge touches.
type Topics struct {
	LockCurrent       string
	LockTarget        string
	LockTargetSet     string
	Motion            string
	Events            string
	System            string
	Radar             string
	RadarAvailability string
}

// NewTopics derives the topic set from a prefix and the radar topic.
func NewTopics(prefix, radar string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	radar = strings.TrimSuffix(radar, "/")
	return Topics{
		LockCurrent:       prefix + "/current",
		LockTarget:        prefix + "/target",
		LockTargetSet:     prefix + "/target/set",
		Motion:            prefix + "/motion",
		Events:            prefix + "/events",
		System:            prefix + "/system",
		Radar:             radar,
		RadarAvailability: radar + "/availability",
	}
}

// Publisher publishes lock state and events to MQTT.
type Publisher interface {
	// PublishLock mirrors the current and target lock characteristics (retained).
	PublishLock(current logic.LockState, target logic.LockCommand) error

	// PublishMotion mirrors the motion characteristic (retained).
	PublishMotion(motion bool) error

	// Publish sends a controller event to the events topic.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RESTART"
	Reason     string // e.g., "SIGTERM", "LONG_PRESS"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Characteristic values as understood by homebridge-mqttthing.
const (
	ValueUnsecured = "U"
	ValueSecured   = "S"
	ValueUnknown   = "?"
)

// FormatLockState encodes a current lock state.
func FormatLockState(s logic.LockState) string {
	switch s {
	case logic.LockUnlocked:
		return ValueUnsecured
	case logic.LockLocked:
		return ValueSecured
	default:
		return ValueUnknown
	}
}

// FormatLockTarget encodes a target lock state.
func FormatLockTarget(c logic.LockCommand) string {
	if c == logic.CommandOpen {
		return ValueUnsecured
	}
	return ValueSecured
}

// ParseLockTarget decodes a target "set" payload. Accepts the letter values
// and the numeric HomeKit encoding.
func ParseLockTarget(payload []byte) (logic.LockCommand, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case ValueUnsecured, "0", "UNSECURED", "UNLOCK":
		return logic.CommandOpen, nil
	case ValueSecured, "1", "SECURED", "LOCK":
		return logic.CommandClose, nil
	}
	return 0, fmt.Errorf("unknown lock target %q", string(payload))
}

// FormatMotion encodes the motion characteristic.
func FormatMotion(motion bool) string {
	if motion {
		return "true"
	}
	return "false"
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lock LockPayload `json:"lock"`
}

// LockPayload contains the controller event details.
type LockPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source,omitempty"`
	Current   string `json:"current"`
	Target    string `json:"target"`
	Motion    *bool  `json:"motion,omitempty"`
	Button    string `json:"button,omitempty"`
	Pin       int    `json:"pin,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := LockPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Source:    string(event.Source),
		Current:   event.Current.String(),
		Target:    event.Target.String(),
	}
	switch event.Type {
	case logic.EventMotionOn, logic.EventMotionOff:
		m := event.Motion
		p.Motion = &m
	case logic.EventButton:
		p.Button = string(event.Button.Class)
		p.Pin = event.Button.Pin
	}
	return json.Marshal(Payload{Lock: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
