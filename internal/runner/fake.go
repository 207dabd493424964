package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// Fake is an in-process ScenarioRunner for tests. Unless a canned
	// result is registered for a scenario, it synthesizes one with
	// every step passed. Step failures and trailing API responses can
	// be scripted per scenario
	Fake struct {
		Results   map[api.ScenarioID]*api.ScenarioExecutionResult
		FailSteps map[api.ScenarioID][]int
		APIBodies map[api.ScenarioID]any
		InitErr   error
		RunErr    error

		mu         sync.Mutex
		opts       *Options
		runs       []RunCall
		initCount  int
		closeCount int
	}

	// RunCall records one Run invocation
	RunCall struct {
		Vars       api.Vars
		ScenarioID api.ScenarioID
	}
)

// NewFake creates an empty fake driver
func NewFake() *Fake {
	return &Fake{
		Results:   map[api.ScenarioID]*api.ScenarioExecutionResult{},
		FailSteps: map[api.ScenarioID][]int{},
		APIBodies: map[api.ScenarioID]any{},
	}
}

// Factory returns a Factory that hands out this fake for every
// execution, recording the construction options
func (f *Fake) Factory() Factory {
	return func(opts *Options) (ScenarioRunner, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.opts = opts
		return f, nil
	}
}

func (f *Fake) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCount++
	return f.InitErr
}

func (f *Fake) Run(
	_ context.Context, s *api.Scenario, vars api.Vars,
) (*api.ScenarioExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, RunCall{Vars: vars, ScenarioID: s.ID})

	if f.RunErr != nil {
		return nil, f.RunErr
	}
	if res, ok := f.Results[s.ID]; ok {
		return res, nil
	}
	return f.synthesize(s), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

// Runs returns the recorded Run invocations
func (f *Fake) Runs() []RunCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RunCall{}, f.runs...)
}

// Counts returns how often Init and Close were called
func (f *Fake) Counts() (inits, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCount, f.closeCount
}

// Options returns the construction options the factory last received
func (f *Fake) Options() *Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

func (f *Fake) synthesize(s *api.Scenario) *api.ScenarioExecutionResult {
	failAt := map[int]struct{}{}
	for _, i := range f.FailSteps[s.ID] {
		failAt[i] = struct{}{}
	}

	res := &api.ScenarioExecutionResult{
		StartedAt: api.Now(),
		Summary:   api.Summary{TotalSteps: len(s.Steps)},
	}
	for i := range s.Steps {
		sr := api.StepResult{
			StepID:   s.Steps[i].ID,
			Index:    i,
			Status:   api.StatusPassed,
			Duration: 1,
		}
		if _, ok := failAt[i]; ok {
			sr.Status = api.StatusFailed
			sr.Error = &api.StepError{
				Message: fmt.Sprintf("step %d failed", i),
			}
			res.Summary.Failed++
		} else {
			res.Summary.Passed++
		}
		res.Summary.Duration += sr.Duration
		res.StepResults = append(res.StepResults, sr)
	}
	res.Summary.Success = res.Summary.Failed == 0

	if body, ok := f.APIBodies[s.ID]; ok {
		res.APICalls = append(res.APICalls, api.APICall{
			Response: body,
			URL:      s.URL,
			Method:   "GET",
			Status:   200,
			Time:     api.Now(),
		})
	}
	return res
}
