package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutoOpenFirstTrigger(t *testing.T) {
	a := NewAutoOpenPolicy(7 * time.Second)
	_, ok := a.LastAutoOpen()
	assert.False(t, ok)

	assert.True(t, a.Consider(true, t0, false))
	last, ok := a.LastAutoOpen()
	assert.True(t, ok)
	assert.Equal(t, t0, last)
}

func TestAutoOpenNoTrigger(t *testing.T) {
	a := NewAutoOpenPolicy(7 * time.Second)
	assert.False(t, a.Consider(false, t0, false))
	_, ok := a.LastAutoOpen()
	assert.False(t, ok)
}

func TestAutoOpenSessionActive(t *testing.T) {
	a := NewAutoOpenPolicy(7 * time.Second)
	assert.False(t, a.Consider(true, t0, true))
	assert.True(t, a.Consider(true, t0.Add(time.Second), false))
}

func TestAutoOpenCooldown(t *testing.T) {
	a := NewAutoOpenPolicy(7 * time.Second)
	assert.True(t, a.Consider(true, t0, false))

	assert.False(t, a.Consider(true, t0.Add(3*time.Second), false))
	assert.False(t, a.Consider(true, t0.Add(7*time.Second), false), "cooldown is exclusive")
	assert.True(t, a.Consider(true, t0.Add(7*time.Second+time.Millisecond), false))
}

func TestAutoOpenSeparation(t *testing.T) {
	a := NewAutoOpenPolicy(7 * time.Second)
	var fired []time.Time
	for now := t0; now.Before(t0.Add(time.Minute)); now = now.Add(500 * time.Millisecond) {
		if a.Consider(true, now, false) {
			fired = append(fired, now)
		}
	}
	for i := 1; i < len(fired); i++ {
		assert.GreaterOrEqual(t, fired[i].Sub(fired[i-1]), 7*time.Second)
	}
	assert.Len(t, fired, 8)
}
