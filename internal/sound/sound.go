// Package sound plays short buzzer cues on a GPIO output line.
package sound

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
)

// Step is one segment of a cue: the line is held at On for D.
type Step struct {
	On bool
	D  time.Duration
}

// Patterns maps each cue to its beep sequence.
var Patterns = map[logic.Cue][]Step{
	// two quick chirps: someone is at the door
	logic.CueProximity: {
		{true, 60 * time.Millisecond}, {false, 60 * time.Millisecond},
		{true, 60 * time.Millisecond},
	},
	// three rising-tempo pulses: unlocking
	logic.CueOpen: {
		{true, 120 * time.Millisecond}, {false, 80 * time.Millisecond},
		{true, 80 * time.Millisecond}, {false, 60 * time.Millisecond},
		{true, 40 * time.Millisecond},
	},
	// one long tone: locked again
	logic.CueClose: {
		{true, 300 * time.Millisecond},
	},
}

// Player plays cues from a single goroutine. A cue requested while another
// is still playing is dropped so the control loop never waits on the buzzer.
type Player struct {
	out   gpio.Output
	log   *zap.SugaredLogger
	sleep func(time.Duration)

	mu     sync.Mutex
	busy   bool
	closed bool
	queue  chan logic.Cue
	done   chan struct{}
}

// NewPlayer starts the playback goroutine. sleep may be nil (time.Sleep).
func NewPlayer(out gpio.Output, log *zap.SugaredLogger, sleep func(time.Duration)) *Player {
	if sleep == nil {
		sleep = time.Sleep
	}
	p := &Player{
		out:   out,
		log:   log,
		sleep: sleep,
		queue: make(chan logic.Cue, 1),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Play requests a cue. Returns false if the cue was dropped.
func (p *Player) Play(cue logic.Cue) bool {
	if _, ok := Patterns[cue]; !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.busy {
		p.log.Debugw("cue dropped", "cue", string(cue))
		return false
	}
	p.busy = true
	p.queue <- cue
	return true
}

// Busy reports whether a cue is playing.
func (p *Player) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Player) run() {
	defer close(p.done)
	for cue := range p.queue {
		for _, s := range Patterns[cue] {
			if err := p.out.Set(s.On); err != nil {
				p.log.Warnw("buzzer write failed", "cue", string(cue), "error", err)
				break
			}
			p.sleep(s.D)
		}
		if err := p.out.Set(false); err != nil {
			p.log.Warnw("buzzer write failed", "cue", string(cue), "error", err)
		}
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}
}

// Close waits for the current cue to finish and stops the goroutine.
// The output line is left low; the caller still owns it.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
