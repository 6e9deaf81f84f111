package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestActuatorEnergizeRelease(t *testing.T) {
	out := NewFakeOutput()
	a := NewActuator(out, 5*time.Second)

	require.NoError(t, a.Energize(t0))
	assert.True(t, a.Energized())
	assert.True(t, out.On())

	// Re-energizing is a no-op
	require.NoError(t, a.Energize(t0.Add(time.Second)))
	assert.Equal(t, 1, out.Rises())

	require.NoError(t, a.Release())
	assert.False(t, a.Energized())
	assert.False(t, out.On())
}

func TestActuatorWatchdog(t *testing.T) {
	out := NewFakeOutput()
	a := NewActuator(out, 5*time.Second)
	require.NoError(t, a.Energize(t0))

	forced, err := a.Check(t0.Add(5 * time.Second))
	require.NoError(t, err)
	assert.False(t, forced)
	assert.True(t, out.On())

	forced, err = a.Check(t0.Add(5*time.Second + time.Millisecond))
	require.NoError(t, err)
	assert.True(t, forced)
	assert.False(t, out.On())
	assert.False(t, a.Energized())
}

func TestActuatorCheckIdle(t *testing.T) {
	a := NewActuator(NewFakeOutput(), 5*time.Second)
	forced, err := a.Check(t0.Add(time.Hour))
	assert.NoError(t, err)
	assert.False(t, forced)
}

func TestActuatorMaxOnClamped(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, MaxOnLimit},
		{-time.Second, MaxOnLimit},
		{time.Hour, MaxOnLimit},
		{4 * time.Second, 4 * time.Second},
	}
	for _, tt := range tests {
		a := NewActuator(NewFakeOutput(), tt.in)
		assert.Equal(t, tt.want, a.MaxOn(), "input %v", tt.in)
	}
}

func TestActuatorSetError(t *testing.T) {
	out := NewFakeOutput()
	out.SetError = errors.New("line busy")
	a := NewActuator(out, 5*time.Second)

	err := a.Energize(t0)
	assert.ErrorContains(t, err, "energize relay")
	assert.False(t, a.Energized())

	assert.ErrorContains(t, a.Release(), "release relay")
}
