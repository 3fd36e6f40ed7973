// Package engine turns program text into a step-by-step narration of how a
// single-threaded event loop would run it.
//
// The engine is a pattern-driven simulator, not an interpreter. Each source
// line is classified into one of a fixed set of statement shapes, and each
// shape emits a canned sequence of state transitions. After the synchronous
// pass, the scheduler drains the microtask queue completely before every
// macrotask, which is the ordering rule the narration exists to illustrate.
package engine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/trace"
)

const (
	globalContextName = "Global Execution Context"
	mainName          = "main()"
)

// Options tunes the narration. Zero fields take their defaults.
type Options struct {
	// ValueWidth is the number of characters of an initializer kept as the
	// displayed value of a binding.
	ValueWidth int `toml:"value_width"`
	// DescriptionWidth is the number of characters of a source line quoted in
	// an "is evaluated" description.
	DescriptionWidth int `toml:"description_width"`
	// FallbackLines caps the lines narrated by the fallback synthesizer.
	FallbackLines int `toml:"fallback_lines"`
}

func DefaultOptions() Options {
	return Options{
		ValueWidth:       30,
		DescriptionWidth: 50,
		FallbackLines:    10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ValueWidth <= 0 {
		o.ValueWidth = d.ValueWidth
	}
	if o.DescriptionWidth <= 0 {
		o.DescriptionWidth = d.DescriptionWidth
	}
	if o.FallbackLines <= 0 {
		o.FallbackLines = d.FallbackLines
	}
	return o
}

// Engine produces step sequences. It holds no per-run state, so one Engine
// may serve concurrent Analyze calls.
type Engine struct {
	opts   Options
	shapes []shape
}

func New(opts Options) *Engine {
	return &Engine{
		opts:   opts.withDefaults(),
		shapes: defaultShapes(),
	}
}

func (e *Engine) Options() Options {
	return e.opts
}

// Analyze narrates source. It always returns at least two steps: the creation
// of the global context and program completion.
func (e *Engine) Analyze(source string) []trace.Step {
	r := newRun(e.opts, source)

	global := r.pushFrame(globalContextName, trace.GlobalScope, 0)
	main := r.pushStack(mainName, 0, trace.Sync)
	r.record(
		"JavaScript engine starts. Global Execution Context is created and pushed onto the Call Stack.",
		0,
		[]trace.Change{
			{Type: trace.ContextPush, Target: global.ID, Value: globalContextName},
			{Type: trace.StackPush, Target: main.ID, Value: mainName},
		},
		false,
	)

	start := r.checkpoint()
	res := r.classify(e.shapes)
	if res.err != nil {
		log.Warn().Err(res.err).Msg("classification pass failed, narrating lines instead")
		r.restore(start)
		r.fallback()
	} else if len(r.steps) <= 1 {
		r.fallback()
	}
	log.Debug().
		Int("lines", res.lines).
		Int("classified", res.classified).
		Int("degraded", res.degraded).
		Int("steps", len(r.steps)).
		Msg("synchronous pass complete")

	r.drainMicrotasks()
	r.processEventLoop()

	r.popStack()
	r.popFrame()
	r.record("Execution complete. Call Stack is empty. Program has finished.", trace.NoLine, []trace.Change{
		{Type: trace.StackPop, Target: mainName},
		{Type: trace.ContextPop, Target: globalContextName},
	}, false)
	return r.steps
}

// Trace runs Analyze and wraps the steps with the source they narrate.
func (e *Engine) Trace(source string) *trace.Trace {
	return trace.NewTrace(source, e.Analyze(source))
}

// passResult reports how the classification pass went. A non-nil err means
// the pass was abandoned and its partial effects must be discarded.
type passResult struct {
	lines      int
	classified int
	degraded   int
	err        error
}

func (r *run) classify(shapes []shape) (res passResult) {
	defer func() {
		if p := recover(); p != nil {
			res.err = fmt.Errorf("classifying line %d: %v", res.lines, p)
		}
	}()

	for i, raw := range r.lines {
		text := strings.TrimSpace(raw)
		if text == "" || isComment(text) {
			continue
		}
		res.lines = i + 1
		l := sourceLine{Text: text, Num: i + 1}

		for _, s := range shapes {
			if !s.match(text) {
				continue
			}
			err := s.apply(r, l)
			if err != nil {
				log.Trace().Err(err).Str("shape", s.name).Int("line", l.Num).Msg("shape rejected line")
				res.degraded++
				applyLine(r, l)
				break
			}
			log.Trace().Str("shape", s.name).Int("line", l.Num).Msg("classified line")
			res.classified++
			break
		}
	}
	return res
}

// fallback narrates up to FallbackLines non-blank lines without touching the
// registers.
func (r *run) fallback() {
	n := 0
	for i, raw := range r.lines {
		if n >= r.opts.FallbackLines {
			return
		}
		text := strings.TrimSpace(raw)
		if text == "" || isComment(text) {
			continue
		}
		r.record(describeEvaluated(i+1, text, r.opts.DescriptionWidth), i+1, nil, false)
		n++
	}
}
