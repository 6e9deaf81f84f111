// Package logic contains the pure decision logic of the door-lock controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// LockState is the externally visible current state of the lock.
// Values follow the HomeKit LockCurrentState encoding.
type LockState int

const (
	LockUnlocked LockState = 0
	LockLocked   LockState = 1
	LockUnknown  LockState = 3
)

func (s LockState) String() string {
	switch s {
	case LockUnlocked:
		return "UNLOCKED"
	case LockLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// LockCommand is the externally visible target state of the lock.
// Values follow the HomeKit LockTargetState encoding.
type LockCommand int

const (
	CommandOpen  LockCommand = 0
	CommandClose LockCommand = 1
)

func (c LockCommand) String() string {
	if c == CommandOpen {
		return "OPEN"
	}
	return "CLOSE"
}

// Phase is the internal state of the lock machine.
type Phase string

const (
	PhaseLocked  Phase = "LOCKED"
	PhaseOpening Phase = "OPENING"
)

// Source identifies what asked for a lock transition.
type Source string

const (
	SourceButton    Source = "button"
	SourceProximity Source = "proximity"
	SourceRemote    Source = "remote"
	SourceRestart   Source = "restart"
)

// Session is the single in-flight open cycle.
type Session struct {
	OpenedAt time.Time
	Source   Source
}

// ButtonClass is the classification of one physical button interaction.
type ButtonClass string

const (
	ButtonSingle ButtonClass = "SINGLE"
	ButtonDouble ButtonClass = "DOUBLE"
	ButtonLong   ButtonClass = "LONG"
)

// ButtonEvent is a classified button interaction on a given pin.
type ButtonEvent struct {
	Pin   int
	Class ButtonClass
}

// PresenceSample is one parsed radar reading.
type PresenceSample struct {
	StationaryDetected   bool
	StationaryDistanceCm uint32
	StationaryEnergy     uint8
	MovingDetected       bool
	MovingDistanceCm     uint32
	MovingEnergy         uint8
}

// Detected reports whether the sample carries any target.
func (s PresenceSample) Detected() bool {
	return s.StationaryDetected || s.MovingDetected
}

// PresenceState is the derived presence view owned by PresenceTracker.
type PresenceState struct {
	MotionPresent    bool
	LastMotionAt     time.Time
	ProximityTrigger bool
}

// Cue is an audio feedback request.
type Cue string

const (
	CueNone      Cue = ""
	CueProximity Cue = "proximity"
	CueOpen      Cue = "open"
	CueClose     Cue = "close"
)

// EventType represents something the run loop must act on or report.
type EventType string

const (
	EventButton         EventType = "BUTTON"
	EventUnlocking      EventType = "UNLOCKING"
	EventLocked         EventType = "LOCKED"
	EventLockMirrored   EventType = "LOCK_MIRRORED"
	EventRequestIgnored EventType = "REQUEST_IGNORED"
	EventMotionOn       EventType = "MOTION_ON"
	EventMotionOff      EventType = "MOTION_OFF"
	EventRestart        EventType = "RESTART"
)

// Event is emitted by the controller for the run loop to apply and publish.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    Source
	Current   LockState
	Target    LockCommand
	Motion    bool
	Button    ButtonEvent
	Cue       Cue
}

// Input is everything the controller observes during one tick.
type Input struct {
	Time time.Time
	// Pressed is the raw button level (true = pressed, already inverted from GPIO).
	Pressed bool
	// Sample is a radar reading that arrived since the last tick, nil if none.
	Sample *PresenceSample
	// RadarConnected is false when the radar collaborator is unavailable.
	RadarConnected bool
	// Remote is a lock target requested by the accessory bridge, nil if none.
	Remote *LockCommand
}

// EventCounts tracks controller activity since startup.
type EventCounts struct {
	OpensButton    int
	OpensProximity int
	OpensRemote    int
	Ignored        int
	MotionOn       int
	MotionOff      int
	Single         int
	Double         int
	Long           int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
