package model

import (
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/trace"
)

// WorkItem is a scenario waiting for its trace.
type WorkItem struct {
	Scenario *Scenario
	Index    int
}

// CheckItem carries an analyzed trace to a checking worker.
type CheckItem struct {
	WorkItem *WorkItem
	Checker  *Checker
	Trace    *trace.Trace
	Hash     cas.Hash
}

func NewWorkItem(s *Scenario, index int) *WorkItem {
	return &WorkItem{
		Scenario: s,
		Index:    index,
	}
}

func NewCheckItem(w *WorkItem, c *Checker, tr *trace.Trace, h cas.Hash) *CheckItem {
	return &CheckItem{
		WorkItem: w,
		Checker:  c,
		Trace:    tr,
		Hash:     h,
	}
}
