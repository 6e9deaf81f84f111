package sound

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
)

func noSleep(time.Duration) {}

func TestPlayDrivesPattern(t *testing.T) {
	out := gpio.NewFakeOutput()
	p := NewPlayer(out, zaptest.NewLogger(t).Sugar(), noSleep)

	require.True(t, p.Play(logic.CueOpen))
	p.Close()

	// pattern levels followed by a final release
	want := []bool{true, false, true, false, true, false}
	assert.Equal(t, want, out.Levels())
	assert.False(t, out.On())
	assert.False(t, out.Closed(), "player does not own the line")
}

func TestPlayUnknownCue(t *testing.T) {
	out := gpio.NewFakeOutput()
	p := NewPlayer(out, zaptest.NewLogger(t).Sugar(), noSleep)
	defer p.Close()

	assert.False(t, p.Play(logic.CueNone))
	assert.False(t, p.Busy())
}

func TestPlayDropsWhileBusy(t *testing.T) {
	out := gpio.NewFakeOutput()
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	sleep := func(time.Duration) {
		started <- struct{}{}
		<-release
	}
	p := NewPlayer(out, zaptest.NewLogger(t).Sugar(), sleep)

	require.True(t, p.Play(logic.CueClose))
	<-started
	assert.True(t, p.Busy())
	assert.False(t, p.Play(logic.CueProximity), "second cue must be dropped")

	close(release)
	p.Close()
	assert.Equal(t, []bool{true, false}, out.Levels())
	assert.False(t, p.Busy())
}

func TestPlayAfterFinish(t *testing.T) {
	out := gpio.NewFakeOutput()
	p := NewPlayer(out, zaptest.NewLogger(t).Sugar(), noSleep)

	require.True(t, p.Play(logic.CueClose))
	require.Eventually(t, func() bool { return !p.Busy() }, time.Second, time.Millisecond)
	assert.True(t, p.Play(logic.CueProximity))
	p.Close()

	assert.Equal(t, 2, out.Rises())
}

func TestPlayWriteError(t *testing.T) {
	out := gpio.NewFakeOutput()
	out.SetError = errors.New("line gone")
	p := NewPlayer(out, zaptest.NewLogger(t).Sugar(), noSleep)

	require.True(t, p.Play(logic.CueOpen))
	p.Close()
	assert.Empty(t, out.Levels())
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPlayer(gpio.NewFakeOutput(), zaptest.NewLogger(t).Sugar(), noSleep)
	p.Close()
	p.Close()
	assert.False(t, p.Play(logic.CueOpen))
}
