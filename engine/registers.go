package engine

import (
	"fmt"
	"strings"

	"github.com/timewinder-dev/looptrace/trace"
)

type idGen struct {
	n int
}

func (g *idGen) next() string {
	id := fmt.Sprintf("id_%d", g.n)
	g.n++
	return id
}

// run owns every piece of mutable state of a single Analyze call. Nothing in
// it is shared between runs.
type run struct {
	opts  Options
	lines []string
	ids   idGen
	regs  trace.Registers
	steps []trace.Step
}

func newRun(opts Options, source string) *run {
	return &run{
		opts:  opts,
		lines: strings.Split(source, "\n"),
	}
}

// checkpoint captures enough of a run to roll back a failed pass.
type checkpoint struct {
	ids   idGen
	regs  trace.Registers
	steps int
}

func (r *run) checkpoint() checkpoint {
	return checkpoint{
		ids:   r.ids,
		regs:  r.regs.Clone(),
		steps: len(r.steps),
	}
}

func (r *run) restore(c checkpoint) {
	r.ids = c.ids
	r.regs = c.regs
	r.steps = r.steps[:c.steps]
}

// record appends a snapshot of the live registers.
func (r *run) record(description string, line int, changes []trace.Change, schedulerActive bool) {
	if changes == nil {
		changes = []trace.Change{}
	}
	r.steps = append(r.steps, trace.Step{
		ID:              r.ids.next(),
		Index:           len(r.steps),
		Description:     description,
		Phase:           trace.PhaseOf(changes),
		ActiveLine:      line,
		State:           r.regs.Clone(),
		SchedulerActive: schedulerActive,
		Changes:         changes,
	})
}

func (r *run) pushStack(name string, line int, kind trace.FrameKind) trace.StackFrame {
	e := trace.StackFrame{ID: r.ids.next(), Name: name, Line: line, Kind: kind}
	r.regs.CallStack = append(r.regs.CallStack, e)
	return e
}

func (r *run) popStack() (trace.StackFrame, bool) {
	n := len(r.regs.CallStack)
	if n == 0 {
		return trace.StackFrame{}, false
	}
	e := r.regs.CallStack[n-1]
	r.regs.CallStack = r.regs.CallStack[:n-1]
	return e, true
}

func (r *run) pushFrame(name string, kind trace.ScopeKind, line int) trace.LexicalFrame {
	f := trace.LexicalFrame{ID: r.ids.next(), Name: name, Kind: kind, Line: line}
	r.regs.Frames = append(r.regs.Frames, f)
	return f
}

func (r *run) popFrame() (trace.LexicalFrame, bool) {
	n := len(r.regs.Frames)
	if n == 0 {
		return trace.LexicalFrame{}, false
	}
	f := r.regs.Frames[n-1]
	r.regs.Frames = r.regs.Frames[:n-1]
	return f, true
}

// innermost returns the top lexical frame, or nil when there is none.
func (r *run) innermost() *trace.LexicalFrame {
	n := len(r.regs.Frames)
	if n == 0 {
		return nil
	}
	return &r.regs.Frames[n-1]
}

func (r *run) addRegistration(name string, kind trace.RegistrationKind, delay *int) trace.Registration {
	reg := trace.Registration{
		ID:     r.ids.next(),
		Name:   name,
		Kind:   kind,
		Delay:  delay,
		Status: trace.Pending,
	}
	r.regs.Registrations = append(r.regs.Registrations, reg)
	return reg
}

func (r *run) resolveRegistration(id string) {
	for i := range r.regs.Registrations {
		if r.regs.Registrations[i].ID == id {
			r.regs.Registrations[i].Status = trace.Resolved
			return
		}
	}
}

// removeRegistrationNamed drops the first registration whose name matches.
func (r *run) removeRegistrationNamed(name string) bool {
	for i, reg := range r.regs.Registrations {
		if reg.Name == name {
			r.regs.Registrations = append(r.regs.Registrations[:i:i], r.regs.Registrations[i+1:]...)
			return true
		}
	}
	return false
}

func (r *run) enqueueMacro(name, source string) trace.QueueEntry {
	e := trace.QueueEntry{ID: r.ids.next(), Name: name, Source: source, Class: trace.Macro}
	r.regs.Macrotasks = append(r.regs.Macrotasks, e)
	return e
}

func (r *run) enqueueMicro(name, source string) trace.QueueEntry {
	e := trace.QueueEntry{ID: r.ids.next(), Name: name, Source: source, Class: trace.Micro}
	r.regs.Microtasks = append(r.regs.Microtasks, e)
	return e
}

func (r *run) dequeueMacro() (trace.QueueEntry, bool) {
	if len(r.regs.Macrotasks) == 0 {
		return trace.QueueEntry{}, false
	}
	e := r.regs.Macrotasks[0]
	r.regs.Macrotasks = r.regs.Macrotasks[1:]
	return e, true
}

func (r *run) dequeueMicro() (trace.QueueEntry, bool) {
	if len(r.regs.Microtasks) == 0 {
		return trace.QueueEntry{}, false
	}
	e := r.regs.Microtasks[0]
	r.regs.Microtasks = r.regs.Microtasks[1:]
	return e, true
}

func (r *run) emit(line string) {
	r.regs.Output = append(r.regs.Output, line)
}
