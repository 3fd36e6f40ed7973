package model

import (
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/trace"
)

// A Checker holds the compiled properties of one scenario.
type Checker struct {
	Name       string
	Properties []Property
}

type PropertyViolation struct {
	Scenario     string
	PropertyName string
	Message      string
	// StepIndex is -1 when no single step witnesses the violation.
	StepIndex int
	Step      *trace.Step
	TraceID   string
	Hash      cas.Hash
}

type ScenarioResult struct {
	Name       string
	TraceID    string
	Hash       cas.Hash
	StepCount  int
	Results    []PropertyResult
	Violations []PropertyViolation
	// Err is set when the scenario could not be analyzed or evaluated.
	Err error
}

func (r *ScenarioResult) Success() bool {
	return r.Err == nil && len(r.Violations) == 0
}

// Check evaluates every property against the trace. An evaluation error
// aborts the check; property failures are reported as violations.
func (c *Checker) Check(tr *trace.Trace) (*ScenarioResult, error) {
	res := &ScenarioResult{
		Name:      c.Name,
		TraceID:   tr.ID,
		StepCount: len(tr.Steps),
	}
	results, err := CheckProperties(tr.Steps, c.Properties)
	res.Results = results
	if err != nil {
		return res, err
	}
	for _, r := range results {
		if r.Success {
			continue
		}
		v := PropertyViolation{
			Scenario:     c.Name,
			PropertyName: r.Name,
			Message:      r.Message,
			StepIndex:    r.StepIndex,
			TraceID:      tr.ID,
		}
		if r.StepIndex >= 0 && r.StepIndex < len(tr.Steps) {
			s := tr.Steps[r.StepIndex]
			v.Step = &s
		}
		res.Violations = append(res.Violations, v)
	}
	return res, nil
}
