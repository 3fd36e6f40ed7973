package engine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/trace"
)

// outputMarker flags a macrotask whose callback writes to the console.
const outputMarker = "console"

// drainMicrotasks runs every queued microtask to completion.
func (r *run) drainMicrotasks() {
	if len(r.regs.Microtasks) == 0 {
		return
	}
	log.Trace().Int("queued", len(r.regs.Microtasks)).Msg("draining microtasks")

	r.record(
		"Call Stack is empty. Event Loop checks Microtask Queue first (higher priority than Task Queue).",
		trace.NoLine,
		[]trace.Change{{Type: trace.EventLoopTick}},
		true,
	)

	for {
		task, ok := r.dequeueMicro()
		if !ok {
			return
		}
		entry := r.pushStack(task.Name, trace.NoLine, trace.Async)
		r.record(
			fmt.Sprintf("Microtask: `%s` is dequeued from Microtask Queue and pushed onto the Call Stack.", task.Name),
			trace.NoLine,
			[]trace.Change{
				{Type: trace.MicrotaskDequeue, Target: task.ID, Value: task.Name},
				{Type: trace.StackPush, Target: entry.ID, Value: task.Name},
			},
			true,
		)

		r.popStack()
		r.record(
			fmt.Sprintf("Microtask `%s` completes and is popped from the Call Stack.", task.Name),
			trace.NoLine,
			[]trace.Change{{Type: trace.StackPop, Value: task.Name}},
			true,
		)
	}
}

// processEventLoop runs macrotasks one at a time, draining the microtask
// queue after each.
func (r *run) processEventLoop() {
	for len(r.regs.Macrotasks) > 0 {
		log.Trace().Int("queued", len(r.regs.Macrotasks)).Msg("event loop tick")
		r.record(
			"Microtask Queue is empty. Event Loop checks Task Queue (Macro Queue) for pending callbacks.",
			trace.NoLine,
			[]trace.Change{{Type: trace.EventLoopTick}},
			true,
		)

		task, _ := r.dequeueMacro()
		r.removeRegistrationNamed(task.Name)

		entry := r.pushStack(task.Name, trace.NoLine, trace.Sync)
		r.record(
			fmt.Sprintf("Task: `%s` is dequeued and pushed onto the Call Stack for execution.", task.Name),
			trace.NoLine,
			[]trace.Change{
				{Type: trace.TaskDequeue, Target: task.ID, Value: task.Name},
				{Type: trace.StackPush, Target: entry.ID, Value: task.Name},
			},
			true,
		)

		if strings.Contains(task.Name, outputMarker) {
			r.emit("> [callback output]")
		}

		r.popStack()
		r.record(
			fmt.Sprintf("`%s` completes. Call Stack is empty again.", task.Name),
			trace.NoLine,
			[]trace.Change{{Type: trace.StackPop, Value: task.Name}},
			false,
		)

		r.drainMicrotasks()
	}
}
