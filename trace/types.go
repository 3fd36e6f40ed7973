package trace

import "strings"

// NoLine marks a step or call-stack entry that is not tied to a source line,
// such as the entries created while the event loop drains its queues.
const NoLine = -1

type FrameKind string

const (
	Sync  FrameKind = "sync"
	Async FrameKind = "async"
)

// StackFrame is one entry of the call stack.
type StackFrame struct {
	ID   string    `json:"id" yaml:"id" msgpack:"id"`
	Name string    `json:"name" yaml:"name" msgpack:"name"`
	Line int       `json:"line" yaml:"line" msgpack:"line"`
	Kind FrameKind `json:"kind" yaml:"kind" msgpack:"kind"`
}

type ScopeKind string

const (
	GlobalScope   ScopeKind = "global"
	FunctionScope ScopeKind = "function"
	ArrowScope    ScopeKind = "arrow"
	AsyncScope    ScopeKind = "async"
)

type Binding struct {
	Name  string `json:"name" yaml:"name" msgpack:"name"`
	Value string `json:"value" yaml:"value" msgpack:"value"`
}

// LexicalFrame is a scope record. Bindings keep their insertion order;
// rebinding an existing name updates it in place.
type LexicalFrame struct {
	ID       string    `json:"id" yaml:"id" msgpack:"id"`
	Name     string    `json:"name" yaml:"name" msgpack:"name"`
	Kind     ScopeKind `json:"kind" yaml:"kind" msgpack:"kind"`
	Bindings []Binding `json:"bindings" yaml:"bindings" msgpack:"bindings"`
	Line     int       `json:"line" yaml:"line" msgpack:"line"`
}

func (f *LexicalFrame) Set(name, value string) {
	for i := range f.Bindings {
		if f.Bindings[i].Name == name {
			f.Bindings[i].Value = value
			return
		}
	}
	f.Bindings = append(f.Bindings, Binding{Name: name, Value: value})
}

func (f *LexicalFrame) Get(name string) (string, bool) {
	for _, b := range f.Bindings {
		if b.Name == name {
			return b.Value, true
		}
	}
	return "", false
}

type RegistrationKind string

const (
	TimerOnce      RegistrationKind = "setTimeout"
	TimerRepeating RegistrationKind = "setInterval"
	NetworkFetch   RegistrationKind = "fetch"
	PromiseWork    RegistrationKind = "promise"
	EventListener  RegistrationKind = "event"
)

type RegistrationStatus string

const (
	Pending RegistrationStatus = "pending"
	// Resolving is part of the model but no shape produces it yet.
	Resolving RegistrationStatus = "resolving"
	Resolved  RegistrationStatus = "resolved"
)

// Registration is work handed off to the host environment (a "Web API"
// entry): timers, network requests and promises that are not yet runnable.
type Registration struct {
	ID     string             `json:"id" yaml:"id" msgpack:"id"`
	Name   string             `json:"name" yaml:"name" msgpack:"name"`
	Kind   RegistrationKind   `json:"kind" yaml:"kind" msgpack:"kind"`
	Delay  *int               `json:"delay,omitempty" yaml:"delay,omitempty" msgpack:"delay"`
	Status RegistrationStatus `json:"status" yaml:"status" msgpack:"status"`
}

type QueueClass string

const (
	Macro QueueClass = "macro"
	Micro QueueClass = "micro"
)

// QueueEntry is a callback that is ready to run.
type QueueEntry struct {
	ID     string     `json:"id" yaml:"id" msgpack:"id"`
	Name   string     `json:"name" yaml:"name" msgpack:"name"`
	Source string     `json:"source" yaml:"source" msgpack:"source"`
	Class  QueueClass `json:"class" yaml:"class" msgpack:"class"`
}

type ChangeType string

const (
	StackPush        ChangeType = "stack_push"
	StackPop         ChangeType = "stack_pop"
	ContextPush      ChangeType = "context_push"
	ContextPop       ChangeType = "context_pop"
	WebAPIAdd        ChangeType = "web_api_add"
	WebAPIResolve    ChangeType = "web_api_resolve"
	TaskEnqueue      ChangeType = "task_enqueue"
	TaskDequeue      ChangeType = "task_dequeue"
	MicrotaskEnqueue ChangeType = "microtask_enqueue"
	MicrotaskDequeue ChangeType = "microtask_dequeue"
	ConsoleLog       ChangeType = "console_log"
	EventLoopTick    ChangeType = "event_loop_tick"
)

// Change describes one mutation that led to a step.
type Change struct {
	Type   ChangeType `json:"type" yaml:"type" msgpack:"type"`
	Target string     `json:"target,omitempty" yaml:"target,omitempty" msgpack:"target"`
	Value  string     `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value"`
}

type Phase string

const (
	HighlightLine Phase = "highlight_line"
	EventLoop     Phase = "event_loop"
)

// Registers is the complete simulated runtime state at one instant.
type Registers struct {
	CallStack     []StackFrame   `json:"callStack" yaml:"callStack" msgpack:"callStack"`
	Frames        []LexicalFrame `json:"executionContext" yaml:"executionContext" msgpack:"executionContext"`
	Registrations []Registration `json:"webApis" yaml:"webApis" msgpack:"webApis"`
	Macrotasks    []QueueEntry   `json:"taskQueue" yaml:"taskQueue" msgpack:"taskQueue"`
	Microtasks    []QueueEntry   `json:"microtaskQueue" yaml:"microtaskQueue" msgpack:"microtaskQueue"`
	Output        []string       `json:"consoleOutput" yaml:"consoleOutput" msgpack:"consoleOutput"`
}

// Step is one immutable snapshot of the synthesized execution.
type Step struct {
	ID              string    `json:"id" yaml:"id" msgpack:"id"`
	Index           int       `json:"stepIndex" yaml:"stepIndex" msgpack:"stepIndex"`
	Description     string    `json:"description" yaml:"description" msgpack:"description"`
	Phase           Phase     `json:"phase" yaml:"phase" msgpack:"phase"`
	ActiveLine      int       `json:"activeLine" yaml:"activeLine" msgpack:"activeLine"`
	State           Registers `json:"state" yaml:"state" msgpack:"state"`
	SchedulerActive bool      `json:"eventLoopActive" yaml:"eventLoopActive" msgpack:"eventLoopActive"`
	Changes         []Change  `json:"changes" yaml:"changes" msgpack:"changes"`
}

// HasChange reports whether any change of the step has type t.
func (s *Step) HasChange(t ChangeType) bool {
	for _, c := range s.Changes {
		if c.Type == t {
			return true
		}
	}
	return false
}

// PhaseOf derives the display phase from the first change of a step.
func PhaseOf(changes []Change) Phase {
	if len(changes) > 0 && strings.HasPrefix(string(changes[0].Type), "event_loop") {
		return EventLoop
	}
	return HighlightLine
}
