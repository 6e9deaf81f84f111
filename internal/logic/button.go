package logic

import "time"

// LineState tracks debounce state for a single input line.
type LineState struct {
	// Current stable (debounced) level
	Stable bool
	// Pending level during debounce
	Pending bool
	// Whether a pending level is being observed
	HasPending bool
	// Time when pending level was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

type buttonPhase int

const (
	buttonIdle        buttonPhase = iota
	buttonDown                    // first press held, not yet classified
	buttonWaitSecond              // released, waiting for a possible second press
	buttonWaitRelease             // classified, swallowing edges until release
)

// ButtonClassifier debounces a raw button level and classifies each
// interaction as SINGLE, DOUBLE or LONG. Exactly one class is emitted per
// interaction.
type ButtonClassifier struct {
	debounce     time.Duration
	longPress    time.Duration
	doubleWindow time.Duration

	line    LineState
	phase   buttonPhase
	edgeAt  time.Time
	pressed bool
}

// NewButtonClassifier creates a classifier. Levels must hold for debounce
// before they count; a press held for longPress is LONG; a second press
// within doubleWindow of the first release is DOUBLE.
func NewButtonClassifier(debounce, longPress, doubleWindow time.Duration) *ButtonClassifier {
	return &ButtonClassifier{
		debounce:     debounce,
		longPress:    longPress,
		doubleWindow: doubleWindow,
	}
}

// Process takes the raw level at now and returns a class if an interaction
// completed on this sample, nil otherwise. No class is emitted until the line
// has been seen released and stable, so a button held at boot is ignored.
func (b *ButtonClassifier) Process(pressed bool, now time.Time) *ButtonClass {
	if b.processLine(pressed, now) {
		b.pressed = b.line.Stable
		if class := b.onEdge(now); class != nil {
			return class
		}
	}
	if !b.line.Baselined {
		return nil
	}
	return b.onTime(now)
}

// processLine applies debounce. Returns true when the stable level changed.
func (b *ButtonClassifier) processLine(level bool, now time.Time) bool {
	ln := &b.line
	if !ln.Baselined {
		if !ln.HasPending || ln.Pending != level {
			// State changed during baseline, restart
			ln.Pending = level
			ln.HasPending = true
			ln.PendingSince = now
			return false
		}
		// Only a released line counts as a baseline.
		if !level && now.Sub(ln.PendingSince) >= b.debounce {
			ln.Stable = false
			ln.Baselined = true
			ln.HasPending = false
		}
		return false
	}

	if level == ln.Stable {
		ln.HasPending = false
		return false
	}

	if !ln.HasPending || ln.Pending != level {
		ln.Pending = level
		ln.HasPending = true
		ln.PendingSince = now
		if b.debounce > 0 {
			return false
		}
	}

	if now.Sub(ln.PendingSince) >= b.debounce {
		ln.Stable = level
		ln.HasPending = false
		return true
	}
	return false
}

func (b *ButtonClassifier) onEdge(now time.Time) *ButtonClass {
	switch b.phase {
	case buttonIdle:
		if b.pressed {
			b.phase = buttonDown
			b.edgeAt = now
		}
	case buttonDown:
		if !b.pressed {
			if now.Sub(b.edgeAt) >= b.longPress {
				b.phase = buttonIdle
				return classPtr(ButtonLong)
			}
			b.phase = buttonWaitSecond
			b.edgeAt = now
		}
	case buttonWaitSecond:
		if b.pressed {
			b.phase = buttonWaitRelease
			return classPtr(ButtonDouble)
		}
	case buttonWaitRelease:
		if !b.pressed {
			b.phase = buttonIdle
		}
	}
	return nil
}

func (b *ButtonClassifier) onTime(now time.Time) *ButtonClass {
	switch b.phase {
	case buttonDown:
		if now.Sub(b.edgeAt) >= b.longPress {
			b.phase = buttonWaitRelease
			return classPtr(ButtonLong)
		}
	case buttonWaitSecond:
		if now.Sub(b.edgeAt) > b.doubleWindow {
			b.phase = buttonIdle
			return classPtr(ButtonSingle)
		}
	}
	return nil
}

// IsBaselined returns whether the button line has a stable released baseline.
func (b *ButtonClassifier) IsBaselined() bool {
	return b.line.Baselined
}

// Pressed returns the debounced button level.
func (b *ButtonClassifier) Pressed() bool {
	return b.line.Stable
}

func classPtr(c ButtonClass) *ButtonClass {
	return &c
}
