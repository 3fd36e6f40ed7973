package model

import (
	"fmt"

	"github.com/timewinder-dev/looptrace/trace"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Operator is the temporal quantifier applied to a per-step predicate. Traces
// are finite, so eventually_always and always_eventually both reduce to the
// predicate holding at the final step; they differ only in how a failure is
// reported.
type Operator string

const (
	Always           Operator = "always"
	Eventually       Operator = "eventually"
	EventuallyAlways Operator = "eventually_always"
	AlwaysEventually Operator = "always_eventually"
)

var fileOptions = &syntax.FileOptions{}

// ExprProperty evaluates a Starlark expression against every step.
type ExprProperty struct {
	name string
	op   Operator
	src  string
}

func NewExprProperty(name string, op Operator, src string) (*ExprProperty, error) {
	if _, err := fileOptions.ParseExpr(name, src, 0); err != nil {
		return nil, fmt.Errorf("property %s: %w", name, err)
	}
	return &ExprProperty{name: name, op: op, src: src}, nil
}

func (p *ExprProperty) Name() string {
	return fmt.Sprintf("%s (%s)", p.name, p.op)
}

func (p *ExprProperty) holds(thread *starlark.Thread, steps []trace.Step, i int) (bool, error) {
	v, err := starlark.EvalOptions(fileOptions, thread, p.name, p.src, StepEnv(steps[i], len(steps)))
	if err != nil {
		return false, fmt.Errorf("property %s at step %d: %w", p.name, i, err)
	}
	return bool(v.Truth()), nil
}

func (p *ExprProperty) Check(steps []trace.Step) (PropertyResult, error) {
	thread := &starlark.Thread{Name: p.name}
	ok := func(msg string) PropertyResult {
		return PropertyResult{Success: true, Name: p.Name(), Message: msg, StepIndex: -1}
	}
	fail := func(idx int, msg string) PropertyResult {
		return PropertyResult{Success: false, Name: p.Name(), Message: msg, StepIndex: idx}
	}

	switch p.op {
	case Always:
		for i := range steps {
			h, err := p.holds(thread, steps, i)
			if err != nil {
				return PropertyResult{}, err
			}
			if !h {
				return fail(i, fmt.Sprintf("Property %s violated at step %d: %s is false", p.name, i, p.src)), nil
			}
		}
		return ok(fmt.Sprintf("Property %s holds at all %d steps", p.name, len(steps))), nil
	case Eventually:
		for i := range steps {
			h, err := p.holds(thread, steps, i)
			if err != nil {
				return PropertyResult{}, err
			}
			if h {
				return ok(fmt.Sprintf("Property %s first holds at step %d", p.name, i)), nil
			}
		}
		return fail(-1, fmt.Sprintf("Property %s violated: %s never holds", p.name, p.src)), nil
	case EventuallyAlways, AlwaysEventually:
		if len(steps) == 0 {
			return fail(-1, fmt.Sprintf("Property %s violated: trace is empty", p.name)), nil
		}
		lastFalse := -1
		for i := range steps {
			h, err := p.holds(thread, steps, i)
			if err != nil {
				return PropertyResult{}, err
			}
			if !h {
				lastFalse = i
			}
		}
		if lastFalse == len(steps)-1 {
			if p.op == EventuallyAlways {
				return fail(lastFalse, fmt.Sprintf("Property %s violated: %s does not settle to true", p.name, p.src)), nil
			}
			return fail(lastFalse, fmt.Sprintf("Property %s violated: %s stops holding after the last step where it held", p.name, p.src)), nil
		}
		return ok(fmt.Sprintf("Property %s holds from step %d on", p.name, lastFalse+1)), nil
	}
	return PropertyResult{}, fmt.Errorf("property %s: unknown operator %q", p.name, p.op)
}

// StepEnv exposes a step to property expressions.
func StepEnv(s trace.Step, stepCount int) starlark.StringDict {
	stack := make([]starlark.Value, 0, len(s.State.CallStack))
	for _, e := range s.State.CallStack {
		stack = append(stack, starlark.String(e.Name))
	}
	frames := make([]starlark.Value, 0, len(s.State.Frames))
	for _, f := range s.State.Frames {
		frames = append(frames, starlark.String(f.Name))
	}
	bindings := starlark.NewDict(0)
	if n := len(s.State.Frames); n > 0 {
		for _, b := range s.State.Frames[n-1].Bindings {
			_ = bindings.SetKey(starlark.String(b.Name), starlark.String(b.Value))
		}
	}
	regs := make([]starlark.Value, 0, len(s.State.Registrations))
	for _, r := range s.State.Registrations {
		d := starlark.NewDict(3)
		_ = d.SetKey(starlark.String("name"), starlark.String(r.Name))
		_ = d.SetKey(starlark.String("kind"), starlark.String(r.Kind))
		_ = d.SetKey(starlark.String("status"), starlark.String(r.Status))
		regs = append(regs, d)
	}
	changes := make([]starlark.Value, 0, len(s.Changes))
	for _, c := range s.Changes {
		changes = append(changes, starlark.String(c.Type))
	}
	output := make([]starlark.Value, 0, len(s.State.Output))
	for _, line := range s.State.Output {
		output = append(output, starlark.String(line))
	}

	return starlark.StringDict{
		"index":            starlark.MakeInt(s.Index),
		"line":             starlark.MakeInt(s.ActiveLine),
		"description":      starlark.String(s.Description),
		"phase":            starlark.String(s.Phase),
		"scheduler_active": starlark.Bool(s.SchedulerActive),
		"call_stack":       starlark.NewList(stack),
		"frames":           starlark.NewList(frames),
		"bindings":         bindings,
		"registrations":    starlark.NewList(regs),
		"macrotasks":       queueNames(s.State.Macrotasks),
		"microtasks":       queueNames(s.State.Microtasks),
		"output":           starlark.NewList(output),
		"changes":          starlark.NewList(changes),
		"step_count":       starlark.MakeInt(stepCount),
	}
}

func queueNames(q []trace.QueueEntry) *starlark.List {
	out := make([]starlark.Value, 0, len(q))
	for _, e := range q {
		out = append(out, starlark.String(e.Name))
	}
	return starlark.NewList(out)
}
