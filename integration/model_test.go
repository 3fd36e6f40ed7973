package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/model"
)

func loadTestdata(t *testing.T) []*model.Scenario {
	t.Helper()
	paths, err := model.FindScenarios([]string{filepath.Join("..", "testdata")})
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	var out []*model.Scenario
	for _, p := range paths {
		s, err := model.LoadScenarioFromFile(p)
		require.NoError(t, err, p)
		out = append(out, s)
	}
	return out
}

// TestScenarioSuite checks every scenario in testdata through the parallel runner.
func TestScenarioSuite(t *testing.T) {
	scenarios := loadTestdata(t)
	traces := cas.NewTraces(cas.NewLRUCache(cas.NewMemoryCAS(), 64), engine.New(engine.Options{}))

	runner := model.NewRunner(traces, 4, true)
	result, err := runner.Run(context.Background(), scenarios)
	require.NoError(t, err)
	require.NotNil(t, result)

	t.Logf("Stats: %d scenarios, %d passed, %d steps",
		result.Statistics.Scenarios,
		result.Statistics.Passed,
		result.Statistics.TotalSteps)

	for _, v := range result.Violations {
		t.Errorf("%s", model.FormatPropertyViolation(v))
	}
	for _, r := range result.Results {
		assert.NoError(t, r.Err, r.Name)
	}
	assert.True(t, result.Success)
	assert.Equal(t, len(scenarios), result.Statistics.Passed)
}

func TestScenarioSuiteIsDeterministic(t *testing.T) {
	scenarios := loadTestdata(t)

	run := func(workers int) []cas.Hash {
		traces := cas.NewTraces(cas.NewMemoryCAS(), engine.New(engine.Options{}))
		result, err := model.NewRunner(traces, workers, true).Run(context.Background(), scenarios)
		require.NoError(t, err)
		var hashes []cas.Hash
		for _, r := range result.Results {
			hashes = append(hashes, r.Hash)
		}
		return hashes
	}

	assert.Equal(t, run(1), run(8))
}
