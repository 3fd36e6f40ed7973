package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timewinder-dev/looptrace/trace"
)

// errShapeMismatch is returned by a shape handler when the line passed the
// shape's predicate but the details could not be extracted. The line is then
// narrated by the fallback shape instead.
var errShapeMismatch = errors.New("line does not fit shape")

type sourceLine struct {
	Text string
	Num  int
}

// A shape recognizes one kind of statement and synthesizes its steps.
type shape struct {
	name  string
	match func(line string) bool
	apply func(r *run, l sourceLine) error
}

var (
	declPrefix  = regexp.MustCompile(`^(const|let|var)\s+(\w+)\s*=`)
	declFull    = regexp.MustCompile(`^(const|let|var)\s+(\w+)\s*=\s*(.+?)(?:;)?$`)
	funcDecl    = regexp.MustCompile(`^(async\s+)?function\s+(\w+)`)
	consoleArgs = regexp.MustCompile(`console\.log\((.+?)\)(?:;)?$`)
	timerDelay  = regexp.MustCompile(`(?:setTimeout|setInterval)\(.*?,\s*(\d+)`)
	awaitExpr   = regexp.MustCompile(`await\s+(.+?)(?:;)?$`)
	plainCall   = regexp.MustCompile(`^(\w+)\s*\(`)
)

var controlKeywords = map[string]bool{
	"if":     true,
	"for":    true,
	"while":  true,
	"return": true,
	"else":   true,
}

const functionMarker = "ƒ()"

// defaultShapes is the classification table. Order is precedence: the first
// shape whose predicate matches a line handles it.
func defaultShapes() []shape {
	return []shape{
		{name: "variable", match: declPrefix.MatchString, apply: applyVariable},
		{name: "function", match: funcDecl.MatchString, apply: applyFunction},
		{name: "console", match: containsAny("console.log"), apply: applyConsole},
		{name: "timer", match: containsAny("setTimeout", "setInterval"), apply: applyTimer},
		{name: "promise", match: containsAny("new Promise", "Promise.resolve"), apply: applyPromise},
		{name: "await", match: containsAny("await"), apply: applyAwait},
		{name: "fetch", match: containsAny("fetch("), apply: applyFetch},
		{name: "call", match: isPlainCall, apply: applyCall},
		{name: "line", match: func(line string) bool { return line != "" }, apply: applyLine},
	}
}

func containsAny(needles ...string) func(string) bool {
	return func(line string) bool {
		for _, n := range needles {
			if strings.Contains(line, n) {
				return true
			}
		}
		return false
	}
}

func isPlainCall(line string) bool {
	m := plainCall.FindStringSubmatch(line)
	return m != nil && !controlKeywords[m[1]]
}

func applyVariable(r *run, l sourceLine) error {
	m := declFull.FindStringSubmatch(l.Text)
	if m == nil {
		return errShapeMismatch
	}
	name := m[2]
	value := truncate(m[3], r.opts.ValueWidth)
	if f := r.innermost(); f != nil {
		f.Set(name, value)
	}
	r.record(
		fmt.Sprintf("Line %d: Variable `%s` is declared and initialized.", l.Num, name),
		l.Num,
		[]trace.Change{{Type: trace.ContextPush, Value: fmt.Sprintf("%s = %s", name, value)}},
		false,
	)
	return nil
}

func applyFunction(r *run, l sourceLine) error {
	m := funcDecl.FindStringSubmatch(l.Text)
	if m == nil {
		return errShapeMismatch
	}
	name := m[2]
	if f := r.innermost(); f != nil {
		f.Set(name, functionMarker)
	}
	r.record(
		fmt.Sprintf("Line %d: Function `%s` is hoisted and stored in memory.", l.Num, name),
		l.Num,
		[]trace.Change{{Type: trace.ContextPush, Value: fmt.Sprintf("%s = %s", name, functionMarker)}},
		false,
	)
	return nil
}

func applyConsole(r *run, l sourceLine) error {
	args := "..."
	if m := consoleArgs.FindStringSubmatch(l.Text); m != nil {
		args = m[1]
	}
	r.emit("> " + args)
	r.record(
		fmt.Sprintf("Line %d: `console.log(%s)` executes synchronously and outputs to console.", l.Num, args),
		l.Num,
		[]trace.Change{{Type: trace.ConsoleLog, Value: args}},
		false,
	)
	return nil
}

// applyTimer models a timer whose delay has already elapsed by the time the
// call returns: the callback reaches the task queue in registration order,
// whatever its delay.
func applyTimer(r *run, l sourceLine) error {
	fn := "setTimeout"
	kind := trace.TimerOnce
	if !strings.Contains(l.Text, "setTimeout") {
		fn = "setInterval"
		kind = trace.TimerRepeating
	}
	delay := 0
	if m := timerDelay.FindStringSubmatch(l.Text); m != nil {
		if d, err := strconv.Atoi(m[1]); err == nil {
			delay = d
		}
	}
	cbName := fmt.Sprintf("%s callback (%dms)", fn, delay)
	call := fn + "()"

	api := r.addRegistration(cbName, kind, &delay)
	entry := r.pushStack(call, l.Num, trace.Sync)
	r.record(
		fmt.Sprintf("Line %d: `%s` is called. The callback is handed off to the Web APIs environment with a %dms timer.", l.Num, fn, delay),
		l.Num,
		[]trace.Change{
			{Type: trace.StackPush, Target: entry.ID, Value: call},
			{Type: trace.WebAPIAdd, Target: api.ID, Value: cbName},
		},
		false,
	)

	r.popStack()
	r.record(
		fmt.Sprintf("`%s` returns immediately. It's popped off the Call Stack. The timer continues in Web APIs.", call),
		l.Num,
		[]trace.Change{{Type: trace.StackPop, Target: call}},
		false,
	)

	task := r.enqueueMacro(cbName, fn)
	r.resolveRegistration(api.ID)
	r.record(
		fmt.Sprintf("Timer (%dms) expires in Web APIs. Callback is moved to the Task Queue (Macro Queue).", delay),
		l.Num,
		[]trace.Change{
			{Type: trace.WebAPIResolve, Target: api.ID},
			{Type: trace.TaskEnqueue, Target: task.ID, Value: cbName},
		},
		false,
	)
	return nil
}

func applyPromise(r *run, l sourceLine) error {
	api := r.addRegistration("Promise", trace.PromiseWork, nil)
	entry := r.pushStack("Promise()", l.Num, trace.Async)
	r.record(
		fmt.Sprintf("Line %d: A new `Promise` is created. The executor function runs synchronously.", l.Num),
		l.Num,
		[]trace.Change{
			{Type: trace.StackPush, Target: entry.ID, Value: "Promise()"},
			{Type: trace.WebAPIAdd, Target: api.ID, Value: "Promise"},
		},
		false,
	)

	r.popStack()
	micro := r.enqueueMicro(".then() callback", "Promise")
	r.resolveRegistration(api.ID)
	r.record(
		"Promise resolves. `.then()` callback is pushed to the Microtask Queue, which has priority over the Task Queue.",
		l.Num,
		[]trace.Change{
			{Type: trace.StackPop, Value: "Promise()"},
			{Type: trace.WebAPIResolve, Target: api.ID},
			{Type: trace.MicrotaskEnqueue, Target: micro.ID, Value: ".then() callback"},
		},
		false,
	)
	return nil
}

func applyAwait(r *run, l sourceLine) error {
	expr := "promise"
	if m := awaitExpr.FindStringSubmatch(l.Text); m != nil {
		expr = m[1]
	}
	name := "await " + expr
	entry := r.pushStack(name, l.Num, trace.Async)
	r.record(
		fmt.Sprintf("Line %d: `await` is encountered. The async function is suspended. Control returns to the caller.", l.Num),
		l.Num,
		[]trace.Change{{Type: trace.StackPush, Target: entry.ID, Value: name}},
		false,
	)

	r.popStack()
	micro := r.enqueueMicro("async resume callback", "await")
	r.record(
		"Awaited value resolves. Resume callback is queued in the Microtask Queue.",
		l.Num,
		[]trace.Change{
			{Type: trace.StackPop, Value: name},
			{Type: trace.MicrotaskEnqueue, Target: micro.ID, Value: "async resume callback"},
		},
		false,
	)
	return nil
}

func applyFetch(r *run, l sourceLine) error {
	const apiName = "fetch() network request"
	api := r.addRegistration(apiName, trace.NetworkFetch, nil)
	entry := r.pushStack("fetch()", l.Num, trace.Async)
	r.record(
		fmt.Sprintf("Line %d: `fetch()` is called. The HTTP request is delegated to the browser's Web API (network layer).", l.Num),
		l.Num,
		[]trace.Change{
			{Type: trace.StackPush, Target: entry.ID, Value: "fetch()"},
			{Type: trace.WebAPIAdd, Target: api.ID, Value: apiName},
		},
		false,
	)

	r.popStack()
	r.record(
		"`fetch()` returns a Promise immediately. The network request continues asynchronously in Web APIs.",
		l.Num,
		[]trace.Change{{Type: trace.StackPop, Value: "fetch()"}},
		false,
	)

	r.resolveRegistration(api.ID)
	micro := r.enqueueMicro("fetch response handler", "fetch")
	r.record(
		"Network request completes. Response handler is queued in the Microtask Queue.",
		l.Num,
		[]trace.Change{
			{Type: trace.WebAPIResolve, Target: api.ID},
			{Type: trace.MicrotaskEnqueue, Target: micro.ID, Value: "fetch response handler"},
		},
		false,
	)
	return nil
}

func applyCall(r *run, l sourceLine) error {
	m := plainCall.FindStringSubmatch(l.Text)
	if m == nil {
		return errShapeMismatch
	}
	name := m[1] + "()"

	frame := r.pushFrame(name, trace.FunctionScope, l.Num)
	entry := r.pushStack(name, l.Num, trace.Sync)
	r.record(
		fmt.Sprintf("Line %d: `%s` is called. A new Execution Context is created and pushed onto the Call Stack.", l.Num, name),
		l.Num,
		[]trace.Change{
			{Type: trace.StackPush, Target: entry.ID, Value: name},
			{Type: trace.ContextPush, Target: frame.ID, Value: name},
		},
		false,
	)

	r.record(fmt.Sprintf("Inside `%s`: function body executes synchronously.", name), l.Num, nil, false)

	r.popStack()
	r.popFrame()
	r.record(
		fmt.Sprintf("`%s` returns. Its Execution Context and Call Stack frame are both removed.", name),
		l.Num,
		[]trace.Change{
			{Type: trace.StackPop, Value: name},
			{Type: trace.ContextPop, Value: name},
		},
		false,
	)
	return nil
}

func applyLine(r *run, l sourceLine) error {
	r.record(describeEvaluated(l.Num, l.Text, r.opts.DescriptionWidth), l.Num, nil, false)
	return nil
}

func describeEvaluated(num int, text string, width int) string {
	return fmt.Sprintf("Line %d: `%s` is evaluated.", num, truncate(text, width))
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "//")
}
