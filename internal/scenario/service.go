// Package scenario drives single scenario executions against a browser
// driver, broadcasting lifecycle events to subscribers and persisting
// outcomes
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/pkg/api"
	"github.com/replaykit/replay/pkg/log"
)

type (
	// Subscriber receives encoded execution events. Subscribers that
	// report closed are skipped silently during broadcast
	Subscriber interface {
		Send(data []byte) error
		IsOpen() bool
	}

	// Service runs scenarios concurrently. Each execution gets a fresh
	// driver, a unique execution ID, and its own subscriber set; the
	// active-execution map is guarded by one mutex
	Service struct {
		scenarios repo.Scenarios
		factory   runner.Factory
		mu        sync.Mutex
		active    map[api.ExecutionID]*execution
	}

	execution struct {
		subscribers map[Subscriber]struct{}
		scenarioID  api.ScenarioID
		startedAt   int64
	}
)

// NewService creates a scenario execution service backed by the given
// repository and driver factory
func NewService(scenarios repo.Scenarios, factory runner.Factory) *Service {
	return &Service{
		scenarios: scenarios,
		factory:   factory,
		active:    map[api.ExecutionID]*execution{},
	}
}

// Execute runs the scenario to completion and returns its result.
// Runtime variables overlay the scenario's stored variables. The
// execution is registered for the duration of the run; subscribers
// observe started, step_complete in index order, then exactly one of
// completed or error. The result is persisted with status passed iff
// the summary reports success; a persistence failure terminates the
// stream with error. Driver close and map removal happen on every path
func (s *Service) Execute(
	ctx context.Context, id api.ScenarioID, opts *runner.Overrides,
	initial Subscriber, runtimeVars api.Vars,
) (*api.ScenarioExecutionResult, error) {
	sc, err := s.scenarios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vars := sc.Variables.Merge(runtimeVars)

	options := opts.Resolve()
	if options.BaseURL == "" {
		options.BaseURL = originOf(sc.URL)
	}

	if s.factory == nil {
		return nil, runner.ErrNoDriver
	}
	driver, err := s.factory(options)
	if err != nil {
		return nil, err
	}

	execID := api.NewExecutionID()
	s.register(execID, sc.ID, initial)
	defer s.remove(execID)
	defer func() { _ = driver.Close() }()

	slog.Info("Scenario execution started",
		log.ExecutionID(execID), log.ScenarioID(sc.ID))
	s.broadcast(execID, &api.ExecutionEvent{
		Type:        api.MessageStarted,
		ExecutionID: execID,
		ScenarioID:  sc.ID,
		TotalSteps:  len(sc.Steps),
	})

	res, err := s.run(ctx, driver, sc, vars)
	if err != nil {
		s.fail(execID, err)
		return nil, err
	}

	for i := range res.StepResults {
		s.broadcast(execID, &api.ExecutionEvent{
			Type:        api.MessageStepComplete,
			ExecutionID: execID,
			StepIndex:   res.StepResults[i].Index,
			StepResult:  &res.StepResults[i],
		})
	}
	if err := s.persist(ctx, sc.ID, res); err != nil {
		s.fail(execID, err)
		return res, err
	}
	s.broadcast(execID, &api.ExecutionEvent{
		Type:        api.MessageCompleted,
		ExecutionID: execID,
		Result:      res,
	})

	slog.Info("Scenario execution completed",
		log.ExecutionID(execID), log.ScenarioID(sc.ID),
		slog.Bool("success", res.Summary.Success))
	return res, nil
}

func (s *Service) run(
	ctx context.Context, driver runner.ScenarioRunner,
	sc *api.Scenario, vars api.Vars,
) (*api.ScenarioExecutionResult, error) {
	if err := driver.Init(ctx); err != nil {
		return nil, fmt.Errorf("driver init: %w", err)
	}
	res, err := driver.Run(ctx, sc, vars)
	if err != nil {
		return nil, fmt.Errorf("driver run: %w", err)
	}
	return res, nil
}

func (s *Service) persist(
	ctx context.Context, id api.ScenarioID,
	res *api.ScenarioExecutionResult,
) error {
	status := api.StatusFailed
	if res.Summary.Success {
		status = api.StatusPassed
	}
	return s.scenarios.AddResult(ctx, &api.StoredResult{
		ID:         api.NewResultID(),
		ScenarioID: id,
		Status:     status,
		ExecutedAt: api.Now(),
		Result:     *res,
	})
}

func (s *Service) fail(execID api.ExecutionID, err error) {
	slog.Error("Scenario execution failed",
		log.ExecutionID(execID), log.Error(err))
	s.broadcast(execID, &api.ExecutionEvent{
		Type:        api.MessageError,
		ExecutionID: execID,
		Error:       err.Error(),
	})
}

// Subscribe attaches a subscriber to a live execution, reporting false
// when no such execution is active
func (s *Service) Subscribe(id api.ExecutionID, sub Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[id]
	if !ok {
		return false
	}
	e.subscribers[sub] = struct{}{}
	return true
}

// Unsubscribe detaches a subscriber; unknown executions are a no-op
func (s *Service) Unsubscribe(id api.ExecutionID, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.active[id]; ok {
		delete(e.subscribers, sub)
	}
}

// Status reports whether the execution is live
func (s *Service) Status(id api.ExecutionID) *api.ExecutionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[id]
	if !ok {
		return &api.ExecutionStatus{}
	}
	return &api.ExecutionStatus{
		Active:     true,
		ScenarioID: e.scenarioID,
		StartedAt:  e.startedAt,
	}
}

func (s *Service) register(
	id api.ExecutionID, scenarioID api.ScenarioID, initial Subscriber,
) {
	e := &execution{
		subscribers: map[Subscriber]struct{}{},
		scenarioID:  scenarioID,
		startedAt:   api.Now(),
	}
	if initial != nil {
		e.subscribers[initial] = struct{}{}
	}
	s.mu.Lock()
	s.active[id] = e
	s.mu.Unlock()
}

func (s *Service) remove(id api.ExecutionID) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *Service) broadcast(id api.ExecutionID, ev *api.ExecutionEvent) {
	data := ev.Encode()

	s.mu.Lock()
	e, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	subs := make([]Subscriber, 0, len(e.subscribers))
	for sub := range e.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.IsOpen() {
			continue
		}
		if err := sub.Send(data); err != nil {
			slog.Warn("Failed to deliver execution event",
				log.ExecutionID(id), log.Error(err))
		}
	}
}

// originOf extracts scheme://host from a URL, or empty when it has no
// host
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
