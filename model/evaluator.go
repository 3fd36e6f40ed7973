package model

import (
	"fmt"
	"slices"

	"github.com/timewinder-dev/looptrace/trace"
)

type PropertyResult struct {
	Success bool
	Message string
	Name    string
	// StepIndex is the first step that witnesses a violation, or -1.
	StepIndex int
}

// A Property judges a complete step sequence.
type Property interface {
	Name() string
	Check(steps []trace.Step) (PropertyResult, error)
}

// invariant is a property implemented in Go. check returns the index of a
// violating step (or -1) and a description of the violation.
type invariant struct {
	name  string
	check func(steps []trace.Step) (int, string)
}

func (p *invariant) Name() string {
	return p.name
}

func (p *invariant) Check(steps []trace.Step) (PropertyResult, error) {
	idx, msg := p.check(steps)
	if idx < 0 && msg == "" {
		return PropertyResult{
			Success:   true,
			Name:      p.name,
			Message:   fmt.Sprintf("Property %s satisfied", p.name),
			StepIndex: -1,
		}, nil
	}
	return PropertyResult{
		Success:   false,
		Name:      p.name,
		Message:   fmt.Sprintf("Property %s violated: %s", p.name, msg),
		StepIndex: idx,
	}, nil
}

// BuiltinProperties are the invariants every generated trace satisfies.
func BuiltinProperties() []Property {
	return []Property{
		&invariant{name: "non_empty", check: checkNonEmpty},
		&invariant{name: "micro_before_macro", check: checkMicroBeforeMacro},
		&invariant{name: "stack_balance", check: checkStackBalance},
		&invariant{name: "monotonic_status", check: checkMonotonicStatus},
	}
}

func checkNonEmpty(steps []trace.Step) (int, string) {
	if len(steps) < 2 {
		return -1, fmt.Sprintf("trace has %d steps, want at least 2", len(steps))
	}
	return -1, ""
}

func checkMicroBeforeMacro(steps []trace.Step) (int, string) {
	for i := 1; i < len(steps); i++ {
		if !steps[i].HasChange(trace.TaskDequeue) {
			continue
		}
		if n := len(steps[i-1].State.Microtasks); n > 0 {
			return i, fmt.Sprintf("macrotask dequeued with %d microtask(s) pending", n)
		}
	}
	return -1, ""
}

func checkStackBalance(steps []trace.Step) (int, string) {
	if len(steps) == 0 {
		return -1, ""
	}
	last := len(steps) - 1
	s := steps[last].State
	if len(s.CallStack) != 0 || len(s.Frames) != 0 {
		return last, fmt.Sprintf("final step has %d call stack entries and %d lexical frames", len(s.CallStack), len(s.Frames))
	}
	return -1, ""
}

func checkMonotonicStatus(steps []trace.Step) (int, string) {
	resolved := map[string]bool{}
	for i, s := range steps {
		for _, reg := range s.State.Registrations {
			if resolved[reg.ID] && reg.Status != trace.Resolved {
				return i, fmt.Sprintf("registration %s (%s) went from resolved back to %s", reg.ID, reg.Name, reg.Status)
			}
			if reg.Status == trace.Resolved {
				resolved[reg.ID] = true
			}
		}
	}
	return -1, ""
}

// ExpectOutput requires the final output log to equal want.
func ExpectOutput(want []string) Property {
	return &invariant{name: "expected_output", check: func(steps []trace.Step) (int, string) {
		if len(steps) == 0 {
			return -1, "trace is empty"
		}
		last := len(steps) - 1
		got := steps[last].State.Output
		if !slices.Equal(got, want) {
			return last, fmt.Sprintf("output is %q, want %q", got, want)
		}
		return -1, ""
	}}
}

// MinSteps requires the trace to have at least n steps.
func MinSteps(n int) Property {
	return &invariant{name: "min_steps", check: func(steps []trace.Step) (int, string) {
		if len(steps) < n {
			return -1, fmt.Sprintf("trace has %d steps, want at least %d", len(steps), n)
		}
		return -1, ""
	}}
}
