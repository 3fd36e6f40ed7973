package trace

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/google/uuid"
	"github.com/shamaton/msgpack/v2"
)

// traceNamespace scopes the name-based trace IDs.
var traceNamespace = uuid.MustParse("6f1c0a8e-4c1b-5d2a-9b7e-2a4c7d9e0f31")

// Trace is the output of one analysis run.
type Trace struct {
	ID     string `json:"id" yaml:"id" msgpack:"id"`
	Source string `json:"source" yaml:"source" msgpack:"source"`
	Steps  []Step `json:"steps" yaml:"steps" msgpack:"steps"`
}

// IDForSource returns the trace ID for a program text. It is stable across
// runs and processes.
func IDForSource(source string) string {
	return uuid.NewSHA1(traceNamespace, []byte(source)).String()
}

func NewTrace(source string, steps []Step) *Trace {
	return &Trace{
		ID:     IDForSource(source),
		Source: source,
		Steps:  steps,
	}
}

func (t *Trace) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, t)
}

func (t *Trace) Deserialize(r io.Reader) error {
	return msgpack.UnmarshalRead(r, t)
}

// Fingerprint hashes the step sequence. Two traces with equal fingerprints
// narrate the same execution.
func Fingerprint(steps []Step) (uint64, error) {
	var buf bytes.Buffer
	if err := msgpack.MarshalWrite(&buf, steps); err != nil {
		return 0, fmt.Errorf("encoding steps: %w", err)
	}
	return farm.Hash64(buf.Bytes()), nil
}

func (r Registers) Clone() Registers {
	out := Registers{}
	if r.CallStack != nil {
		out.CallStack = append([]StackFrame{}, r.CallStack...)
	}
	for _, f := range r.Frames {
		out.Frames = append(out.Frames, f.Clone())
	}
	for _, reg := range r.Registrations {
		out.Registrations = append(out.Registrations, reg.Clone())
	}
	if r.Macrotasks != nil {
		out.Macrotasks = append([]QueueEntry{}, r.Macrotasks...)
	}
	if r.Microtasks != nil {
		out.Microtasks = append([]QueueEntry{}, r.Microtasks...)
	}
	if r.Output != nil {
		out.Output = append([]string{}, r.Output...)
	}
	return out
}

func (f LexicalFrame) Clone() LexicalFrame {
	out := f
	out.Bindings = nil
	if f.Bindings != nil {
		out.Bindings = append([]Binding{}, f.Bindings...)
	}
	return out
}

func (r Registration) Clone() Registration {
	out := r
	if r.Delay != nil {
		d := *r.Delay
		out.Delay = &d
	}
	return out
}

// Clone returns a copy of the step that shares no memory with s.
func (s Step) Clone() Step {
	out := s
	out.State = s.State.Clone()
	if s.Changes != nil {
		out.Changes = append([]Change{}, s.Changes...)
	}
	return out
}

// RegistrationByID looks up a registration in the snapshot.
func (r Registers) RegistrationByID(id string) (Registration, bool) {
	for _, reg := range r.Registrations {
		if reg.ID == id {
			return reg, true
		}
	}
	return Registration{}, false
}

// PrettyPrint renders the registers as indented plain text.
func (r Registers) PrettyPrint() string {
	var b strings.Builder
	b.WriteString("Call Stack:\n")
	if len(r.CallStack) == 0 {
		b.WriteString("  (empty)\n")
	}
	for i := len(r.CallStack) - 1; i >= 0; i-- {
		e := r.CallStack[i]
		fmt.Fprintf(&b, "  %s [%s]%s\n", e.Name, e.Kind, formatLine(e.Line))
	}

	b.WriteString("Execution Context:\n")
	if len(r.Frames) == 0 {
		b.WriteString("  (empty)\n")
	}
	for i := len(r.Frames) - 1; i >= 0; i-- {
		f := r.Frames[i]
		fmt.Fprintf(&b, "  %s (%s)\n", f.Name, f.Kind)
		for _, v := range f.Bindings {
			fmt.Fprintf(&b, "    %s = %s\n", v.Name, v.Value)
		}
	}

	b.WriteString("Web APIs:\n")
	if len(r.Registrations) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, reg := range r.Registrations {
		if reg.Delay != nil {
			fmt.Fprintf(&b, "  %s <%s, %dms> %s\n", reg.Name, reg.Kind, *reg.Delay, reg.Status)
		} else {
			fmt.Fprintf(&b, "  %s <%s> %s\n", reg.Name, reg.Kind, reg.Status)
		}
	}

	fmt.Fprintf(&b, "Microtask Queue: %s\n", formatQueue(r.Microtasks))
	fmt.Fprintf(&b, "Task Queue: %s\n", formatQueue(r.Macrotasks))

	b.WriteString("Console:\n")
	for _, line := range r.Output {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return b.String()
}

func formatLine(line int) string {
	if line == NoLine {
		return ""
	}
	return fmt.Sprintf(" line %d", line)
}

func formatQueue(q []QueueEntry) string {
	if len(q) == 0 {
		return "[]"
	}
	names := make([]string, 0, len(q))
	for _, e := range q {
		names = append(names, e.Name)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
