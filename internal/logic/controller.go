package logic

import "time"

// Config holds the controller timings.
type Config struct {
	ButtonPin         int
	SampleInterval    time.Duration
	HoldOver          time.Duration
	ProximityCm       uint32
	AutoOpenCooldown  time.Duration
	OpenDuration      time.Duration
	Debounce          time.Duration
	LongPress         time.Duration
	DoublePressWindow time.Duration
}

// Controller fuses button, radar and remote inputs into lock decisions.
// One call to Process is one tick of the poll cycle.
type Controller struct {
	cfg      Config
	presence *PresenceTracker
	button   *ButtonClassifier
	policy   *AutoOpenPolicy
	lock     *LockMachine

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewController creates a controller with every component in its default state.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(cfg Config, startTime time.Time) *Controller {
	return &Controller{
		cfg:           cfg,
		presence:      NewPresenceTracker(cfg.SampleInterval, cfg.HoldOver, cfg.ProximityCm),
		button:        NewButtonClassifier(cfg.Debounce, cfg.LongPress, cfg.DoublePressWindow),
		policy:        NewAutoOpenPolicy(cfg.AutoOpenCooldown),
		lock:          NewLockMachine(cfg.OpenDuration),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process runs one tick and returns the events to apply, in order.
// Within a tick the radar is ingested first, then the button, then the remote
// request, then the auto-open policy. Only the first lock request of a tick is
// handed to the lock machine.
func (c *Controller) Process(in Input) []Event {
	now := in.Time
	var events []Event

	// A due relock runs before new requests so a cycle ending this tick frees the slot.
	events = append(events, c.lock.Tick(now)...)

	events = append(events, c.ingestRadar(in)...)

	slotTaken := false
	request := func(cmd LockCommand, src Source) {
		if slotTaken {
			events = append(events, Event{
				Timestamp: now,
				Type:      EventRequestIgnored,
				Source:    src,
				Current:   c.lock.Current(),
				Target:    c.lock.Target(),
			})
			return
		}
		slotTaken = true
		events = append(events, c.lock.Request(cmd, src, now)...)
	}

	if class := c.button.Process(in.Pressed, now); class != nil {
		events = append(events, Event{
			Timestamp: now,
			Type:      EventButton,
			Source:    SourceButton,
			Current:   c.lock.Current(),
			Target:    c.lock.Target(),
			Button:    ButtonEvent{Pin: c.cfg.ButtonPin, Class: *class},
		})
		switch *class {
		case ButtonSingle:
			request(CommandOpen, SourceButton)
		case ButtonLong:
			events = append(events, Event{
				Timestamp: now,
				Type:      EventRestart,
				Source:    SourceRestart,
				Current:   c.lock.Current(),
				Target:    c.lock.Target(),
			})
			c.count(events)
			return events
		case ButtonDouble:
			// Reserved.
		}
	}

	if in.Remote != nil {
		request(*in.Remote, SourceRemote)
	}

	if !slotTaken && c.policy.Consider(c.presence.State().ProximityTrigger, now, c.lock.Active()) {
		c.presence.ConsumeProximity()
		request(CommandOpen, SourceProximity)
	}

	c.count(events)
	return events
}

func (c *Controller) ingestRadar(in Input) []Event {
	sample := PresenceSample{}
	if in.RadarConnected {
		if in.Sample == nil {
			return nil
		}
		sample = *in.Sample
	}

	upd := c.presence.Ingest(sample, in.Time)
	if !in.RadarConnected {
		c.presence.ConsumeProximity()
	}
	if !upd.MotionChanged {
		return nil
	}

	t := EventMotionOff
	if upd.Motion {
		t = EventMotionOn
	}
	return []Event{{
		Timestamp: in.Time,
		Type:      t,
		Current:   c.lock.Current(),
		Target:    c.lock.Target(),
		Motion:    upd.Motion,
	}}
}

func (c *Controller) count(events []Event) {
	for _, e := range events {
		switch e.Type {
		case EventUnlocking:
			switch e.Source {
			case SourceButton:
				c.eventCounts.OpensButton++
			case SourceProximity:
				c.eventCounts.OpensProximity++
			case SourceRemote:
				c.eventCounts.OpensRemote++
			}
		case EventRequestIgnored:
			c.eventCounts.Ignored++
		case EventMotionOn:
			c.eventCounts.MotionOn++
		case EventMotionOff:
			c.eventCounts.MotionOff++
		case EventButton:
			switch e.Button.Class {
			case ButtonSingle:
				c.eventCounts.Single++
			case ButtonDouble:
				c.eventCounts.Double++
			case ButtonLong:
				c.eventCounts.Long++
			}
		}
	}
}

// Lock returns the lock machine for read access.
func (c *Controller) Lock() *LockMachine {
	return c.lock
}

// Presence returns a copy of the presence state.
func (c *Controller) Presence() PresenceState {
	return c.presence.State()
}

// ButtonBaselined returns whether the button has a stable released baseline.
func (c *Controller) ButtonBaselined() bool {
	return c.button.IsBaselined()
}

// EventCountsSnapshot returns a copy of the event counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
