package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/looptrace/trace"
)

const orderingProgram = `console.log("start");
setTimeout(function later() {}, 0);
Promise.resolve().then(function soon() {});
console.log("end");`

// samplePrograms exercises every shape at least once.
var samplePrograms = map[string]string{
	"empty":    "",
	"console":  `console.log("hi")`,
	"ordering": orderingProgram,
	"timers": `setTimeout(a, 100);
setInterval(b, 5);
setTimeout(c, 0);`,
	"async": `async function load() {
  const res = await fetch("/api");
  const body = await res.json();
}
load();
fetch("/other");`,
	"calls": `function greet() {}
greet();
if (ready) {
  run();
}`,
	"promise": `const p = new Promise(resolve => resolve(1));
Promise.resolve(2);
await p;`,
	"garbled": "}}{{ ;; @@",
	"comments": `// just a comment
// and another`,
}

func analyze(source string) []trace.Step {
	return New(Options{}).Analyze(source)
}

func changeTypes(s trace.Step) []string {
	var out []string
	for _, c := range s.Changes {
		out = append(out, string(c.Type))
	}
	return out
}

func findStep(steps []trace.Step, t trace.ChangeType, value string) int {
	for i, s := range steps {
		for _, c := range s.Changes {
			if c.Type == t && (value == "" || c.Value == value) {
				return i
			}
		}
	}
	return -1
}

func TestAnalyzeEmptyInput(t *testing.T) {
	steps := analyze("")
	require.Len(t, steps, 2)

	first, last := steps[0], steps[1]
	assert.Equal(t, []string{"context_push", "stack_push"}, changeTypes(first))
	assert.Equal(t, []string{"stack_pop", "context_pop"}, changeTypes(last))
	assert.Equal(t, trace.NoLine, last.ActiveLine)

	for _, s := range steps {
		assert.Empty(t, s.State.Registrations)
		assert.Empty(t, s.State.Macrotasks)
		assert.Empty(t, s.State.Microtasks)
		assert.Empty(t, s.State.Output)
	}
	assert.Empty(t, last.State.CallStack)
	assert.Empty(t, last.State.Frames)
}

func TestAnalyzeConsoleLog(t *testing.T) {
	steps := analyze(`console.log("hi")`)

	idx := findStep(steps, trace.ConsoleLog, "")
	require.NotEqual(t, -1, idx, "no console_log step")
	assert.Equal(t, 1, steps[idx].ActiveLine)

	for i, s := range steps {
		if i < idx {
			assert.Empty(t, s.State.Output, "step %d", i)
			continue
		}
		assert.Equal(t, []string{`> "hi"`}, s.State.Output, "step %d", i)
	}
}

func TestTimerRunsAfterSynchronousCode(t *testing.T) {
	steps := analyze("setTimeout(fn, 0)\nconsole.log(\"x\")")

	logged := findStep(steps, trace.ConsoleLog, `"x"`)
	dequeued := findStep(steps, trace.TaskDequeue, "")
	require.NotEqual(t, -1, logged)
	require.NotEqual(t, -1, dequeued)
	assert.Less(t, logged, dequeued)
	assert.Contains(t, steps[dequeued-1].State.Output, `> "x"`)
}

func TestMicrotasksBeforeMacrotasks(t *testing.T) {
	// Source order puts the timer first; the promise callback still wins.
	steps := analyze(orderingProgram)

	micro := findStep(steps, trace.MicrotaskDequeue, ".then() callback")
	macro := findStep(steps, trace.TaskDequeue, "setTimeout callback (0ms)")
	require.NotEqual(t, -1, micro)
	require.NotEqual(t, -1, macro)
	assert.Less(t, micro, macro)
	assert.Empty(t, steps[macro-1].State.Microtasks)
	assert.Equal(t, []string{`> "start"`, `> "end"`}, steps[len(steps)-1].State.Output)
}

func TestGarbledLineIsNarrated(t *testing.T) {
	steps := analyze("}}{{ ;; @@")
	require.Len(t, steps, 3)
	assert.Equal(t, "Line 1: `}}{{ ;; @@` is evaluated.", steps[1].Description)
	assert.Empty(t, steps[1].Changes)
	assert.Equal(t, 1, steps[1].ActiveLine)
}

func TestShapePrecedence(t *testing.T) {
	tests := []struct {
		line        string
		first       trace.ChangeType
		description string
	}{
		{"const x = 42;", trace.ContextPush, "Line 1: Variable `x` is declared and initialized."},
		{"let p = new Promise(r => r())", trace.ContextPush, "Line 1: Variable `p` is declared and initialized."},
		{"async function run() {", trace.ContextPush, "Line 1: Function `run` is hoisted and stored in memory."},
		{"setTimeout(() => console.log(1), 10)", trace.ConsoleLog, "Line 1: `console.log(1), 10)` executes synchronously and outputs to console."},
		{"setTimeout(go, 10)", trace.StackPush, "Line 1: `setTimeout` is called. The callback is handed off to the Web APIs environment with a 10ms timer."},
		{"new Promise(resolve => fetch(url))", trace.StackPush, "Line 1: A new `Promise` is created. The executor function runs synchronously."},
		{"await fetch(url)", trace.StackPush, "Line 1: `await` is encountered. The async function is suspended. Control returns to the caller."},
		{"fetch(url).then(r => r)", trace.StackPush, "Line 1: `fetch()` is called. The HTTP request is delegated to the browser's Web API (network layer)."},
		{"doWork(1, 2)", trace.StackPush, "Line 1: `doWork()` is called. A new Execution Context is created and pushed onto the Call Stack."},
		{"if (x) {", "", "Line 1: `if (x) {` is evaluated."},
		{"const broken =", "", "Line 1: `const broken =` is evaluated."},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			steps := analyze(tt.line)
			require.GreaterOrEqual(t, len(steps), 3)
			s := steps[1]
			assert.Equal(t, tt.description, s.Description)
			if tt.first == "" {
				assert.Empty(t, s.Changes)
			} else {
				require.NotEmpty(t, s.Changes)
				assert.Equal(t, tt.first, s.Changes[0].Type)
			}
		})
	}
}

func TestVariableBindings(t *testing.T) {
	long := strings.Repeat("a", 40)
	steps := analyze("const x = 1;\nlet y = \"" + long + "\"\nfunction f() {}\nvar x = 2")

	global := steps[len(steps)-2].State.Frames[0]
	assert.Equal(t, trace.GlobalScope, global.Kind)
	assert.Equal(t, []trace.Binding{
		{Name: "x", Value: "2"},
		{Name: "y", Value: "\"" + strings.Repeat("a", 29)},
		{Name: "f", Value: "ƒ()"},
	}, global.Bindings)

	// The first snapshot after x is bound still shows the original value.
	v, ok := steps[1].State.Frames[0].Get("x")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestPlainCallPushesAndPopsFrames(t *testing.T) {
	steps := analyze("compute()")
	require.Len(t, steps, 5)

	called := steps[1]
	require.Len(t, called.State.Frames, 2)
	assert.Equal(t, "compute()", called.State.Frames[1].Name)
	assert.Equal(t, trace.FunctionScope, called.State.Frames[1].Kind)
	require.Len(t, called.State.CallStack, 2)
	assert.Equal(t, "compute()", called.State.CallStack[1].Name)

	body := steps[2]
	assert.Empty(t, body.Changes)
	assert.Len(t, body.State.CallStack, 2)

	returned := steps[3]
	assert.Len(t, returned.State.Frames, 1)
	assert.Len(t, returned.State.CallStack, 1)
}

func TestTimerRegistration(t *testing.T) {
	steps := analyze("setInterval(poll, 250)")

	added := steps[1]
	require.Len(t, added.State.Registrations, 1)
	reg := added.State.Registrations[0]
	assert.Equal(t, "setInterval callback (250ms)", reg.Name)
	assert.Equal(t, trace.TimerRepeating, reg.Kind)
	assert.Equal(t, trace.Pending, reg.Status)
	require.NotNil(t, reg.Delay)
	assert.Equal(t, 250, *reg.Delay)

	queued := steps[3]
	assert.Equal(t, trace.Resolved, queued.State.Registrations[0].Status)
	require.Len(t, queued.State.Macrotasks, 1)
	assert.Equal(t, "setInterval", queued.State.Macrotasks[0].Source)

	// The registration leaves when its callback runs.
	dequeued := findStep(steps, trace.TaskDequeue, "")
	require.NotEqual(t, -1, dequeued)
	assert.Empty(t, steps[dequeued].State.Registrations)
}

func TestUnparsableDelayDefaultsToZero(t *testing.T) {
	steps := analyze("setTimeout(function () {")
	require.NotEmpty(t, steps[1].State.Registrations)
	assert.Equal(t, 0, *steps[1].State.Registrations[0].Delay)
	assert.Equal(t, "setTimeout callback (0ms)", steps[1].State.Registrations[0].Name)
}

func TestTimersFireInRegistrationOrder(t *testing.T) {
	steps := analyze(samplePrograms["timers"])
	var order []string
	for _, s := range steps {
		for _, c := range s.Changes {
			if c.Type == trace.TaskDequeue {
				order = append(order, c.Value)
			}
		}
	}
	assert.Equal(t, []string{
		"setTimeout callback (100ms)",
		"setInterval callback (5ms)",
		"setTimeout callback (0ms)",
	}, order)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	e := New(Options{})
	for name, src := range samplePrograms {
		t.Run(name, func(t *testing.T) {
			a := e.Analyze(src)
			b := e.Analyze(src)
			assert.Equal(t, a, b)

			fa, err := trace.Fingerprint(a)
			require.NoError(t, err)
			fb, err := trace.Fingerprint(b)
			require.NoError(t, err)
			assert.Equal(t, fa, fb)
			assert.Equal(t, "id_0", a[0].State.Frames[0].ID)
		})
	}
}

func TestTraceInvariants(t *testing.T) {
	for name, src := range samplePrograms {
		t.Run(name, func(t *testing.T) {
			steps := analyze(src)
			require.GreaterOrEqual(t, len(steps), 2)

			last := steps[len(steps)-1]
			assert.Empty(t, last.State.CallStack)
			assert.Empty(t, last.State.Frames)

			resolved := map[string]bool{}
			for i, s := range steps {
				assert.Equal(t, i, s.Index)
				if i > 0 && s.HasChange(trace.TaskDequeue) {
					assert.Empty(t, steps[i-1].State.Microtasks, "macrotask dequeued at step %d with microtasks pending", i)
				}
				for _, reg := range s.State.Registrations {
					if resolved[reg.ID] {
						assert.Equal(t, trace.Resolved, reg.Status, "registration %s reverted at step %d", reg.ID, i)
					}
					if reg.Status == trace.Resolved {
						resolved[reg.ID] = true
					}
				}
			}
		})
	}
}

func TestStepsDoNotAliasRegisters(t *testing.T) {
	steps := analyze(orderingProgram)
	before := steps[1].Clone()

	steps[2].State.Output = append(steps[2].State.Output[:0], "mutated")
	steps[2].State.Frames[0].Set("z", "9")
	if len(steps[2].State.CallStack) > 0 {
		steps[2].State.CallStack[0].Name = "mutated"
	}
	assert.Equal(t, before, steps[1])
	_, ok := steps[3].State.Frames[0].Get("z")
	assert.False(t, ok)
}

func TestSchedulerPhases(t *testing.T) {
	steps := analyze(orderingProgram)
	tick := findStep(steps, trace.EventLoopTick, "")
	require.NotEqual(t, -1, tick)
	assert.Equal(t, trace.EventLoop, steps[tick].Phase)
	assert.True(t, steps[tick].SchedulerActive)
	assert.Equal(t, trace.NoLine, steps[tick].ActiveLine)
	assert.Equal(t, trace.HighlightLine, steps[0].Phase)
}

func TestClassificationFailureFallsBack(t *testing.T) {
	e := New(Options{})
	boom := shape{
		name:  "boom",
		match: containsAny("explode"),
		apply: func(r *run, l sourceLine) error { panic("bad capture") },
	}
	e.shapes = append([]shape{boom}, e.shapes...)

	steps := e.Analyze("const a = 1\nsetTimeout(f, 0)\nexplode()")
	require.Len(t, steps, 5)
	assert.Equal(t, "Line 1: `const a = 1` is evaluated.", steps[1].Description)
	assert.Equal(t, "Line 2: `setTimeout(f, 0)` is evaluated.", steps[2].Description)
	assert.Equal(t, "Line 3: `explode()` is evaluated.", steps[3].Description)
	for _, s := range steps[1:4] {
		assert.Empty(t, s.Changes)
		assert.Empty(t, s.State.Macrotasks)
		assert.Empty(t, s.State.Registrations)
		_, bound := s.State.Frames[0].Get("a")
		assert.False(t, bound)
	}
}

func TestFallbackCapsLines(t *testing.T) {
	var lines []string
	for i := 0; i < 15; i++ {
		lines = append(lines, "", fmt.Sprintf("stmt %d", i))
	}
	r := newRun(DefaultOptions(), strings.Join(lines, "\n"))
	r.fallback()
	require.Len(t, r.steps, 10)
	assert.Equal(t, "Line 2: `stmt 0` is evaluated.", r.steps[0].Description)
	assert.Equal(t, 20, r.steps[9].ActiveLine)
}

func TestCommentOnlyInput(t *testing.T) {
	steps := analyze(samplePrograms["comments"])
	assert.Len(t, steps, 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
	assert.Equal(t, "ƒƒ", truncate("ƒƒƒ", 2))
	assert.Equal(t, "all", truncate("all", 0))
}

func narrate(steps []trace.Step) []byte {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "%d|%s|%d|%s|%s\n", s.Index, s.Phase, s.ActiveLine, strings.Join(changeTypes(s), ","), s.Description)
	}
	return []byte(b.String())
}

func TestNarrationGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	steps := analyze("setTimeout(function tick() {}, 0);\nconsole.log(\"x\");")
	g.Assert(t, "timer_after_sync", narrate(steps))
}

func TestConsoleCallbackEmitsOutput(t *testing.T) {
	r := newRun(DefaultOptions(), "")
	r.enqueueMacro("console callback", "setTimeout")
	r.enqueueMacro("setTimeout callback (0ms)", "setTimeout")
	r.processEventLoop()

	assert.Equal(t, []string{"> [callback output]"}, r.regs.Output)
	assert.Empty(t, r.regs.Macrotasks)
	assert.Empty(t, r.regs.CallStack)

	dequeued := findStep(r.steps, trace.TaskDequeue, "console callback")
	require.NotEqual(t, -1, dequeued)
	assert.Empty(t, r.steps[dequeued].State.Output)
	assert.Equal(t, []string{"> [callback output]"}, r.steps[dequeued+1].State.Output)
}
