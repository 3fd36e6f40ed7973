package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegisters() Registers {
	delay := 5
	return Registers{
		CallStack: []StackFrame{{ID: "id_1", Name: "main()", Line: 0, Kind: Sync}},
		Frames: []LexicalFrame{{
			ID:       "id_0",
			Name:     "Global Execution Context",
			Kind:     GlobalScope,
			Bindings: []Binding{{Name: "x", Value: "1"}},
		}},
		Registrations: []Registration{{ID: "id_2", Name: "setTimeout callback (5ms)", Kind: TimerOnce, Delay: &delay, Status: Pending}},
		Macrotasks:    []QueueEntry{{ID: "id_3", Name: "setTimeout callback (5ms)", Source: "setTimeout", Class: Macro}},
		Microtasks:    []QueueEntry{{ID: "id_4", Name: ".then() callback", Source: "Promise", Class: Micro}},
		Output:        []string{"> 1"},
	}
}

func TestRegistersCloneIsDeep(t *testing.T) {
	orig := sampleRegisters()
	c := orig.Clone()
	require.Equal(t, orig, c)

	c.CallStack[0].Name = "changed"
	c.Frames[0].Set("x", "2")
	c.Frames[0].Set("y", "3")
	*c.Registrations[0].Delay = 99
	c.Registrations[0].Status = Resolved
	c.Macrotasks[0].Name = "changed"
	c.Microtasks[0].Name = "changed"
	c.Output[0] = "changed"

	assert.Equal(t, sampleRegisters(), orig)
}

func TestLexicalFrameKeepsInsertionOrder(t *testing.T) {
	f := LexicalFrame{}
	f.Set("b", "1")
	f.Set("a", "2")
	f.Set("b", "3")

	assert.Equal(t, []Binding{{Name: "b", Value: "3"}, {Name: "a", Value: "2"}}, f.Bindings)
	v, ok := f.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = f.Get("missing")
	assert.False(t, ok)
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, HighlightLine, PhaseOf(nil))
	assert.Equal(t, EventLoop, PhaseOf([]Change{{Type: EventLoopTick}}))
	assert.Equal(t, HighlightLine, PhaseOf([]Change{{Type: StackPush}, {Type: EventLoopTick}}))
}

func TestTraceSerializeRoundTrip(t *testing.T) {
	steps := []Step{{
		ID:          "id_5",
		Index:       0,
		Description: "start",
		Phase:       HighlightLine,
		State:       sampleRegisters(),
		Changes:     []Change{{Type: StackPush, Target: "id_1", Value: "main()"}},
	}}
	tr := NewTrace("console.log(1)", steps)

	var buf bytes.Buffer
	require.NoError(t, tr.Serialize(&buf))

	var out Trace
	require.NoError(t, out.Deserialize(&buf))
	assert.Equal(t, tr.ID, out.ID)
	assert.Equal(t, tr.Source, out.Source)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "start", out.Steps[0].Description)
	assert.Equal(t, []string{"> 1"}, out.Steps[0].State.Output)
	require.NotNil(t, out.Steps[0].State.Registrations[0].Delay)
	assert.Equal(t, 5, *out.Steps[0].State.Registrations[0].Delay)
}

func TestIDForSourceIsStable(t *testing.T) {
	assert.Equal(t, IDForSource("a"), IDForSource("a"))
	assert.NotEqual(t, IDForSource("a"), IDForSource("b"))
}

func TestFingerprint(t *testing.T) {
	a := []Step{{Description: "one"}}
	b := []Step{{Description: "two"}}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fa2, err := Fingerprint([]Step{{Description: "one"}})
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fa2)
	assert.NotEqual(t, fa, fb)
}

func TestPrettyPrint(t *testing.T) {
	out := sampleRegisters().PrettyPrint()
	assert.Contains(t, out, "main() [sync] line 0")
	assert.Contains(t, out, "x = 1")
	assert.Contains(t, out, "setTimeout callback (5ms) <setTimeout, 5ms> pending")
	assert.Contains(t, out, "Microtask Queue: [.then() callback]")
	assert.Contains(t, out, "Task Queue: [setTimeout callback (5ms)]")
	assert.Contains(t, out, "> 1")

	empty := Registers{}.PrettyPrint()
	assert.Contains(t, empty, "Call Stack:\n  (empty)")
	assert.Contains(t, empty, "Task Queue: []")
}
