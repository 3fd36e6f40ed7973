package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/trace"
)

func loaded(t *testing.T) *Player {
	t.Helper()
	steps := engine.New(engine.Options{}).Analyze("console.log(1)\nconsole.log(2)")
	require.Len(t, steps, 4)
	p := New()
	p.Load(steps)
	return p
}

func TestNewPlayerIsIdle(t *testing.T) {
	p := New()
	assert.Equal(t, Idle, p.Status())
	assert.Equal(t, -1, p.Index())
	_, ok := p.Current()
	assert.False(t, ok)
	assert.False(t, p.Next())
}

func TestNavigation(t *testing.T) {
	p := loaded(t)
	assert.Equal(t, 0, p.Index())
	assert.Equal(t, Paused, p.Status())

	assert.False(t, p.Prev())
	assert.True(t, p.Next())
	assert.Equal(t, 1, p.Index())

	assert.True(t, p.GoTo(3))
	assert.Equal(t, Complete, p.Status())
	assert.False(t, p.Next())
	assert.Equal(t, 3, p.Index())

	assert.True(t, p.Prev())
	assert.Equal(t, Paused, p.Status())
	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, 2, cur.Index)

	assert.False(t, p.GoTo(10))
	assert.Equal(t, 2, p.Index())

	p.Reset()
	assert.Equal(t, Idle, p.Status())
	assert.Equal(t, 0, p.Len())
}

func TestLoadEmpty(t *testing.T) {
	p := New()
	p.Load(nil)
	assert.Equal(t, Idle, p.Status())
	assert.Equal(t, -1, p.Index())
}

func TestPlayRunsToCompletion(t *testing.T) {
	p := loaded(t)
	var seen []int
	err := p.Play(context.Background(), time.Millisecond, func(s trace.Step) {
		seen = append(seen, s.Index)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, Complete, p.Status())
}

func TestPlayStopsOnCancel(t *testing.T) {
	p := loaded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Play(ctx, time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Paused, p.Status())
	assert.Equal(t, 0, p.Index())
}

func TestPlayRejectsNonPositiveInterval(t *testing.T) {
	p := loaded(t)
	for _, d := range []time.Duration{0, -time.Second} {
		var err error
		assert.NotPanics(t, func() { err = p.Play(context.Background(), d, nil) })
		assert.ErrorIs(t, err, ErrBadInterval)
		assert.Equal(t, Paused, p.Status())
		assert.Equal(t, 0, p.Index())
	}
}
