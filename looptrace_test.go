package looptrace

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/looptrace/model"
	"github.com/timewinder-dev/looptrace/trace"
)

func TestScenariosInTestdata(t *testing.T) {
	err := filepath.WalkDir("testdata", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".toml") {
			return nil
		}
		t.Run(filepath.Base(path), testScenario(path))
		return nil
	})
	require.NoError(t, err)
}

func testScenario(path string) func(t *testing.T) {
	return func(t *testing.T) {
		s, err := model.LoadScenarioFromFile(path)
		require.NoError(t, err)
		src, err := s.LoadSource()
		require.NoError(t, err)
		checker, err := s.BuildChecker()
		require.NoError(t, err)

		res, err := checker.Check(trace.NewTrace(src, Analyze(src)))
		require.NoError(t, err)
		for _, v := range res.Violations {
			t.Errorf("%s: %s", v.PropertyName, v.Message)
		}
	}
}

func TestDefaultProgram(t *testing.T) {
	steps := Analyze(DefaultProgram)
	require.Greater(t, len(steps), 2)

	last := steps[len(steps)-1]
	assert.Empty(t, last.State.CallStack)
	assert.Len(t, last.State.Output, 4)
	assert.Equal(t, `> "1: Script starts"`, last.State.Output[0])
	assert.Equal(t, `> "2: Script ends"`, last.State.Output[3])

	var ticks int
	for _, s := range steps {
		if s.HasChange(trace.EventLoopTick) {
			ticks++
		}
	}
	// One microtask drain and one macrotask turn.
	assert.Equal(t, 2, ticks)
}
