// Package ingest manages recording sessions: raw event capture from the
// browser recorder and the finish-session path that turns a recording
// into a scenario
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/transform"
	"github.com/replaykit/replay/pkg/api"
	"github.com/replaykit/replay/pkg/log"
)

type (
	// Service owns the recording session lifecycle
	Service struct {
		sessions  repo.Sessions
		scenarios repo.Scenarios
		schema    *jsonschema.Schema
	}

	// StartRequest names a new recording session
	StartRequest struct {
		Viewport *api.Viewport `json:"viewport,omitempty"`
		Name     string        `json:"name,omitempty"`
		URL      string        `json:"url"`
	}
)

var (
	ErrInvalidEvents    = errors.New("invalid event batch")
	ErrNothingRecorded  = errors.New("session produced no steps")
	ErrSessionURLNeeded = errors.New("session url required")
)

// NewService creates the ingest service, compiling the event batch
// schema once
func NewService(
	sessions repo.Sessions, scenarios repo.Scenarios,
) (*Service, error) {
	schema, err := compileEventSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		sessions:  sessions,
		scenarios: scenarios,
		schema:    schema,
	}, nil
}

// Start opens a new active session
func (s *Service) Start(
	ctx context.Context, req *StartRequest,
) (*api.RecordingSession, error) {
	if req.URL == "" {
		return nil, ErrSessionURLNeeded
	}
	session := &api.RecordingSession{
		ID:        api.NewSessionID(),
		Name:      req.Name,
		URL:       req.URL,
		Viewport:  req.Viewport,
		Status:    api.SessionActive,
		StartedAt: api.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("Recording session started", log.SessionID(session.ID))
	return session, nil
}

// Session returns one session
func (s *Service) Session(
	ctx context.Context, id api.SessionID,
) (*api.RecordingSession, error) {
	return s.sessions.Get(ctx, id)
}

// SessionWithEvents returns one session together with its recorded
// events
func (s *Service) SessionWithEvents(
	ctx context.Context, id api.SessionID,
) (*api.SessionWithEvents, error) {
	return s.sessions.GetWithEvents(ctx, id)
}

// Sessions lists all sessions
func (s *Service) Sessions(
	ctx context.Context,
) ([]*api.RecordingSession, error) {
	return s.sessions.List(ctx)
}

// Update applies a partial update to the session's metadata
func (s *Service) Update(
	ctx context.Context, id api.SessionID, p *api.SessionPatch,
) (*api.RecordingSession, error) {
	return s.sessions.Update(ctx, id, p)
}

// Stop marks the session stopped
func (s *Service) Stop(
	ctx context.Context, id api.SessionID,
) (*api.RecordingSession, error) {
	return s.sessions.Stop(ctx, id)
}

// Delete removes the session and its events
func (s *Service) Delete(ctx context.Context, id api.SessionID) error {
	return s.sessions.Delete(ctx, id)
}

// AppendEvents validates a raw recorder batch against the event schema
// and appends it to the session. Replayed events are ignored; the
// returned count covers newly accepted events only
func (s *Service) AppendEvents(
	ctx context.Context, id api.SessionID, raw []byte,
) (int, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidEvents, err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidEvents, err)
	}

	var events []api.RecordedEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidEvents, err)
	}
	return s.sessions.AddEvents(ctx, id, events)
}

// Events returns the session's accepted events in arrival order
func (s *Service) Events(
	ctx context.Context, id api.SessionID,
) ([]api.RecordedEvent, error) {
	return s.sessions.Events(ctx, id)
}

// ClearEvents drops all recorded events for the session
func (s *Service) ClearEvents(
	ctx context.Context, id api.SessionID,
) error {
	return s.sessions.ClearEvents(ctx, id)
}

// Finish stops the session, reduces its events to steps, and creates
// the resulting scenario. A recording that reduces to zero steps is
// rejected
func (s *Service) Finish(
	ctx context.Context, id api.SessionID, name string,
) (*api.Scenario, error) {
	session, err := s.sessions.Stop(ctx, id)
	if errors.Is(err, api.ErrSessionStopped) {
		session, err = s.sessions.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	events, err := s.sessions.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := transform.FromSession(session, events)
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingRecorded, id)
	}

	if name == "" {
		name = session.Name
	}
	scenario := &api.Scenario{
		ID:         api.NewScenarioID(),
		Name:       name,
		URL:        session.URL,
		Viewport:   session.Viewport,
		Steps:      steps,
		ASTVersion: api.CurrentASTVersion,
		CreatedAt:  api.Now(),
	}
	if err := s.scenarios.Create(ctx, scenario); err != nil {
		return nil, err
	}

	slog.Info("Session finished into scenario",
		log.SessionID(id), log.ScenarioID(scenario.ID),
		slog.Int("steps", len(steps)))
	return scenario, nil
}
