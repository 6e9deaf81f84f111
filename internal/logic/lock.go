package logic

import "time"

// LockMachine owns the lock target/current state and the single open session.
// The relay is energized on entering Opening and released once openDuration
// has elapsed; the door always relocks at the end of a cycle.
type LockMachine struct {
	openDuration time.Duration

	phase    Phase
	current  LockState
	target   LockCommand
	session  *Session
	deadline time.Time
}

// NewLockMachine creates a machine in the Locked phase.
func NewLockMachine(openDuration time.Duration) *LockMachine {
	return &LockMachine{
		openDuration: openDuration,
		phase:        PhaseLocked,
		current:      LockLocked,
		target:       CommandClose,
	}
}

// Request asks for a transition. Returns the resulting events; a request that
// cannot be honoured yields a single EventRequestIgnored.
func (m *LockMachine) Request(cmd LockCommand, src Source, now time.Time) []Event {
	if m.session != nil {
		// No queueing and no cancellation while a cycle is in flight.
		return []Event{m.event(now, EventRequestIgnored, src, CueNone)}
	}

	if cmd == CommandClose {
		m.current = LockLocked
		m.target = CommandClose
		return []Event{m.event(now, EventLockMirrored, src, CueNone)}
	}

	m.session = &Session{OpenedAt: now, Source: src}
	m.deadline = now.Add(m.openDuration)
	m.phase = PhaseOpening
	m.target = CommandOpen
	m.current = LockUnlocked

	cue := CueOpen
	if src == SourceProximity {
		cue = CueProximity
	}
	return []Event{m.event(now, EventUnlocking, src, cue)}
}

// Tick completes the open cycle once its deadline has passed.
func (m *LockMachine) Tick(now time.Time) []Event {
	if m.phase != PhaseOpening || now.Before(m.deadline) {
		return nil
	}
	src := m.session.Source

	m.target = CommandClose
	m.current = LockLocked
	m.session = nil
	m.phase = PhaseLocked

	return []Event{m.event(now, EventLocked, src, CueClose)}
}

// Active reports whether an open session is in flight.
func (m *LockMachine) Active() bool {
	return m.session != nil
}

// Session returns a copy of the active session, if any.
func (m *LockMachine) Session() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Phase returns the current machine phase.
func (m *LockMachine) Phase() Phase {
	return m.phase
}

// Current returns the mirrored current lock state.
func (m *LockMachine) Current() LockState {
	return m.current
}

// Target returns the mirrored target lock state.
func (m *LockMachine) Target() LockCommand {
	return m.target
}

// Deadline returns when the active open cycle ends.
func (m *LockMachine) Deadline() time.Time {
	return m.deadline
}

func (m *LockMachine) event(now time.Time, t EventType, src Source, cue Cue) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		Source:    src,
		Current:   m.current,
		Target:    m.target,
		Cue:       cue,
	}
}
