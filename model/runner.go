package model

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/looptrace/cas"
)

// Runner checks scenarios in parallel. Analysis workers produce traces
// (through the shared trace store) and checking workers evaluate them.
type Runner struct {
	Traces    *cas.Traces
	Workers   int
	KeepGoing bool
	Reporter  Reporter

	ctx    context.Context
	cancel context.CancelFunc

	workQueue  chan *WorkItem
	checkQueue chan *CheckItem

	resultsMu  sync.Mutex
	results    []*ScenarioResult
	violations []PropertyViolation

	stepCount int64

	execWg  sync.WaitGroup
	checkWg sync.WaitGroup
}

type CheckStatistics struct {
	Scenarios      int
	Passed         int
	Failed         int
	Skipped        int
	TotalSteps     int
	ViolationCount int
	Elapsed        time.Duration
}

type RunResult struct {
	Statistics CheckStatistics
	Results    []*ScenarioResult
	Violations []PropertyViolation
	Success    bool
}

func NewRunner(traces *cas.Traces, workers int, keepGoing bool) *Runner {
	return &Runner{
		Traces:    traces,
		Workers:   workers,
		KeepGoing: keepGoing,
		Reporter:  &SilentReporter{},
	}
}

func (r *Runner) workerCount(n int) int {
	w := r.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Run checks every scenario and returns results in input order. Unless
// KeepGoing is set, the first failing scenario cancels the remaining work and
// the scenarios that never ran are counted as skipped.
func (r *Runner) Run(ctx context.Context, scenarios []*Scenario) (*RunResult, error) {
	if r.Traces == nil {
		return nil, errors.New("runner has no trace store")
	}
	if r.Reporter == nil {
		r.Reporter = &SilentReporter{}
	}
	start := time.Now()
	r.ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()

	n := r.workerCount(len(scenarios))
	r.results = make([]*ScenarioResult, len(scenarios))
	r.violations = nil
	atomic.StoreInt64(&r.stepCount, 0)
	r.workQueue = make(chan *WorkItem, n*2)
	r.checkQueue = make(chan *CheckItem, n*2)

	for i := 0; i < n; i++ {
		r.execWg.Add(1)
		go r.execWorker(i)
		r.checkWg.Add(1)
		go r.checkWorker(i)
	}

	log.Debug().Int("scenarios", len(scenarios)).Int("workers", n).Msg("checking scenarios")

feed:
	for i, s := range scenarios {
		select {
		case r.workQueue <- NewWorkItem(s, i):
		case <-r.ctx.Done():
			break feed
		}
	}

	close(r.workQueue)
	r.execWg.Wait()
	close(r.checkQueue)
	r.checkWg.Wait()

	res := r.buildResult(time.Since(start))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) buildResult(elapsed time.Duration) *RunResult {
	stats := CheckStatistics{
		Scenarios:      len(r.results),
		TotalSteps:     int(atomic.LoadInt64(&r.stepCount)),
		ViolationCount: len(r.violations),
		Elapsed:        elapsed,
	}
	var results []*ScenarioResult
	for _, res := range r.results {
		switch {
		case res == nil:
			stats.Skipped++
			continue
		case res.Success():
			stats.Passed++
		default:
			stats.Failed++
		}
		results = append(results, res)
	}
	return &RunResult{
		Statistics: stats,
		Results:    results,
		Violations: r.violations,
		Success:    stats.Failed == 0 && stats.Skipped == 0,
	}
}

func (r *Runner) record(index int, res *ScenarioResult) {
	r.resultsMu.Lock()
	defer r.resultsMu.Unlock()
	r.results[index] = res
	r.violations = append(r.violations, res.Violations...)

	switch {
	case res.Success():
		r.Reporter.Printf("%s %s (%d steps)\n", color.Green.Sprint("✓"), res.Name, res.StepCount)
		return
	case res.Err != nil:
		r.Reporter.Printf("%s %s: %v\n", color.Red.Sprint("✗"), res.Name, res.Err)
	default:
		r.Reporter.Printf("%s %s: %d violation(s)\n", color.Red.Sprint("✗"), res.Name, len(res.Violations))
	}
	if !r.KeepGoing {
		r.cancel()
	}
}

func (r *Runner) execWorker(workerID int) {
	defer r.execWg.Done()
	for item := range r.workQueue {
		if r.ctx.Err() != nil {
			continue
		}
		r.processWorkItem(workerID, item)
	}
}

func (r *Runner) processWorkItem(workerID int, item *WorkItem) {
	s := item.Scenario
	fail := func(err error) {
		log.Error().Err(err).Int("worker", workerID).Str("scenario", s.Name).Msg("scenario failed")
		r.record(item.Index, &ScenarioResult{Name: s.Name, Err: err})
	}

	checker, err := s.BuildChecker()
	if err != nil {
		fail(err)
		return
	}
	src, err := s.LoadSource()
	if err != nil {
		fail(err)
		return
	}
	tr, h, err := r.Traces.Get(src)
	if err != nil {
		fail(err)
		return
	}
	atomic.AddInt64(&r.stepCount, int64(len(tr.Steps)))
	log.Debug().Int("worker", workerID).Str("scenario", s.Name).Int("steps", len(tr.Steps)).Str("hash", h.String()).Msg("analyzed scenario")

	select {
	case r.checkQueue <- NewCheckItem(item, checker, tr, h):
	case <-r.ctx.Done():
	}
}

func (r *Runner) checkWorker(workerID int) {
	defer r.checkWg.Done()
	for item := range r.checkQueue {
		r.processCheckItem(workerID, item)
	}
}

func (r *Runner) processCheckItem(workerID int, item *CheckItem) {
	res, err := item.Checker.Check(item.Trace)
	if err != nil {
		log.Error().Err(err).Int("worker", workerID).Str("scenario", item.Checker.Name).Msg("property evaluation failed")
		res.Err = err
	}
	res.Hash = item.Hash
	for i := range res.Violations {
		res.Violations[i].Hash = item.Hash
	}
	r.record(item.WorkItem.Index, res)
}
