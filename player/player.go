// Package player navigates a recorded step sequence.
package player

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/trace"
)

type Status string

var ErrBadInterval = errors.New("playback interval must be positive")

const (
	Idle     Status = "idle"
	Running  Status = "running"
	Paused   Status = "paused"
	Complete Status = "complete"
)

// Player holds a read-only step sequence and a cursor into it. It is not safe
// for concurrent use.
type Player struct {
	steps  []trace.Step
	index  int
	status Status
}

func New() *Player {
	return &Player{index: -1, status: Idle}
}

// Load replaces the sequence and moves to its first step.
func (p *Player) Load(steps []trace.Step) {
	p.steps = steps
	if len(steps) == 0 {
		p.index = -1
		p.status = Idle
		return
	}
	p.index = 0
	p.status = Paused
}

func (p *Player) Reset() {
	p.steps = nil
	p.index = -1
	p.status = Idle
}

func (p *Player) Len() int {
	return len(p.steps)
}

func (p *Player) Index() int {
	return p.index
}

func (p *Player) Status() Status {
	return p.status
}

// Current returns the step under the cursor.
func (p *Player) Current() (trace.Step, bool) {
	if p.index < 0 || p.index >= len(p.steps) {
		return trace.Step{}, false
	}
	return p.steps[p.index], true
}

func (p *Player) Next() bool {
	return p.GoTo(p.index + 1)
}

func (p *Player) Prev() bool {
	return p.GoTo(p.index - 1)
}

// GoTo moves the cursor to i. Out of range targets leave the player unchanged.
func (p *Player) GoTo(i int) bool {
	if i < 0 || i >= len(p.steps) {
		return false
	}
	p.index = i
	if i == len(p.steps)-1 {
		p.status = Complete
	} else {
		p.status = Paused
	}
	return true
}

// Play advances one step per interval, calling fn with each new step, until
// the last step is reached or ctx is done.
func (p *Player) Play(ctx context.Context, interval time.Duration, fn func(trace.Step)) error {
	if interval <= 0 {
		return ErrBadInterval
	}
	if len(p.steps) == 0 {
		return nil
	}
	if p.status == Complete {
		p.GoTo(0)
		if fn != nil {
			fn(p.steps[0])
		}
	}
	p.status = Running
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.status = Paused
			log.Debug().Int("index", p.index).Msg("playback interrupted")
			return ctx.Err()
		case <-ticker.C:
			if !p.Next() {
				p.status = Complete
				return nil
			}
			if fn != nil {
				fn(p.steps[p.index])
			}
			if p.status == Complete {
				return nil
			}
			p.status = Running
		}
	}
}
