// Package status provides a thread-safe status tracker for the door-lock daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-lock/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	DebounceMs   int64
	HeartbeatMs  int64
	OpenMs       int64
	CooldownMs   int64
	HoldOverMs   int64
	ProximityCm  uint32
	Broker       string
	HTTPPort     string
	AuditEnabled bool
}

// Lock is the lock machine's externally relevant state.
type Lock struct {
	Phase    logic.Phase
	Current  logic.LockState
	Target   logic.LockCommand
	Session  *logic.Session
	Deadline time.Time
}

// LockFrom copies the state out of a lock machine.
func LockFrom(m *logic.LockMachine) Lock {
	l := Lock{
		Phase:   m.Phase(),
		Current: m.Current(),
		Target:  m.Target(),
	}
	if s, ok := m.Session(); ok {
		l.Session = &s
		l.Deadline = m.Deadline()
	}
	return l
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Lock           Lock
	Presence       logic.PresenceState
	RadarConnected bool
	Baselined      bool
	RelayOn        bool
	Counts         logic.EventCounts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Lock:      Lock{Phase: logic.PhaseLocked, Current: logic.LockLocked, Target: logic.CommandClose},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets lock and presence state, baseline status, and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(lock Lock, presence logic.PresenceState, radarConnected, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Lock = lock
	t.snap.Presence = presence
	t.snap.RadarConnected = radarConnected
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetRelay records whether the relay coil is energized.
func (t *Tracker) SetRelay(on bool) {
	t.mu.Lock()
	t.snap.RelayOn = on
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
