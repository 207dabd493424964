// Package repo defines the persistence ports for scenarios, recording
// sessions, user flows, and execution results
package repo

import (
	"context"
	"errors"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// Scenarios persists scenarios and their execution results. List
	// pages are 1-based; a non-positive limit returns everything
	Scenarios interface {
		Create(ctx context.Context, s *api.Scenario) error
		Get(ctx context.Context, id api.ScenarioID) (*api.Scenario, error)
		List(
			ctx context.Context, page, limit int,
		) ([]*api.Scenario, error)
		Update(
			ctx context.Context, id api.ScenarioID, p *api.ScenarioPatch,
		) (*api.Scenario, error)
		Delete(ctx context.Context, id api.ScenarioID) error

		AddResult(ctx context.Context, r *api.StoredResult) error
		ListResults(
			ctx context.Context, id api.ScenarioID,
		) ([]*api.StoredResult, error)
	}

	// Sessions persists recording sessions and their event streams.
	// AddEvent and AddEvents are idempotent on event ID: replayed
	// events are ignored, only events not seen before append
	Sessions interface {
		Create(ctx context.Context, s *api.RecordingSession) error
		Get(
			ctx context.Context, id api.SessionID,
		) (*api.RecordingSession, error)
		GetWithEvents(
			ctx context.Context, id api.SessionID,
		) (*api.SessionWithEvents, error)
		List(ctx context.Context) ([]*api.RecordingSession, error)
		Update(
			ctx context.Context, id api.SessionID, p *api.SessionPatch,
		) (*api.RecordingSession, error)
		Stop(
			ctx context.Context, id api.SessionID,
		) (*api.RecordingSession, error)
		Delete(ctx context.Context, id api.SessionID) error

		AddEvent(
			ctx context.Context, id api.SessionID, event *api.RecordedEvent,
		) (bool, error)
		AddEvents(
			ctx context.Context, id api.SessionID, events []api.RecordedEvent,
		) (int, error)
		Events(
			ctx context.Context, id api.SessionID,
		) ([]api.RecordedEvent, error)
		ClearEvents(ctx context.Context, id api.SessionID) error
	}

	// Flows persists user flow graphs and their execution results.
	// Deleting a flow cascades to its results
	Flows interface {
		Create(ctx context.Context, f *api.UserFlow) error
		Get(ctx context.Context, id api.FlowID) (*api.UserFlow, error)
		List(ctx context.Context) ([]*api.UserFlow, error)
		Update(
			ctx context.Context, id api.FlowID, p *api.FlowPatch,
		) (*api.UserFlow, error)
		Delete(ctx context.Context, id api.FlowID) error

		AddResult(ctx context.Context, r *api.FlowExecutionResult) error
		ListResults(
			ctx context.Context, id api.FlowID,
		) ([]*api.FlowExecutionResult, error)
	}

	// Store bundles the repositories behind one connection
	Store interface {
		Scenarios() Scenarios
		Sessions() Sessions
		Flows() Flows
		Ping(ctx context.Context) error
		Close() error
	}
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFlowNotFound     = errors.New("flow not found")
	ErrAlreadyExists    = errors.New("already exists")
)
