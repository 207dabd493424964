package flow

import (
	"context"
	"log/slog"

	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/pkg/api"
	"github.com/replaykit/replay/pkg/log"
)

// Service fronts the engine with flow lookup and result persistence
type Service struct {
	flows  repo.Flows
	engine *Engine
}

// NewService creates a flow service executing through the given engine
func NewService(flows repo.Flows, engine *Engine) *Service {
	return &Service{flows: flows, engine: engine}
}

// Execute loads the flow, walks it, and persists the result. The
// result is returned even when persistence fails
func (s *Service) Execute(
	ctx context.Context, id api.FlowID, opts *Options,
) (*api.FlowExecutionResult, error) {
	f, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res := s.engine.Execute(ctx, f, opts)
	if err := s.flows.AddResult(ctx, res); err != nil {
		slog.Error("Failed to persist flow result",
			log.FlowID(id), log.Error(err))
		return res, err
	}
	return res, nil
}

// Flatten returns the flow's scenario IDs in topological order without
// executing anything
func (s *Service) Flatten(
	ctx context.Context, id api.FlowID,
) ([]api.ScenarioID, error) {
	f, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Flatten(f), nil
}

// Results lists the flow's persisted execution results
func (s *Service) Results(
	ctx context.Context, id api.FlowID,
) ([]*api.FlowExecutionResult, error) {
	if _, err := s.flows.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.flows.ListResults(ctx, id)
}
