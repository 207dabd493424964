package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// Vars holds named variable bindings. Values are plain data only:
	// nil, bool, float64, string, map[string]any, or []any. Cyclic or
	// otherwise self-referential structures are not permitted
	Vars map[string]any

	// Scenario is a deterministic linear script of browser steps,
	// recorded from a session or authored directly
	Scenario struct {
		ID        ScenarioID `json:"id"`
		Name      string     `json:"name,omitempty"`
		URL       string     `json:"url"`
		Viewport  *Viewport  `json:"viewport,omitempty"`
		Steps     []Step     `json:"steps"`
		Setup     []Step     `json:"setup,omitempty"`
		Teardown  []Step     `json:"teardown,omitempty"`
		Variables Vars       `json:"variables,omitempty"`
		Tags      []string   `json:"tags,omitempty"`
		// ASTVersion records the step-tree schema the scenario was
		// written against
		ASTVersion int   `json:"astSchemaVersion"`
		CreatedAt  int64 `json:"createdAt"`
		UpdatedAt  int64 `json:"updatedAt,omitempty"`
	}

	// ScenarioPatch carries partial updates to a scenario. Nil fields
	// leave the stored value untouched
	ScenarioPatch struct {
		Name      *string   `json:"name,omitempty"`
		URL       *string   `json:"url,omitempty"`
		Viewport  *Viewport `json:"viewport,omitempty"`
		Steps     []Step    `json:"steps,omitempty"`
		Setup     []Step    `json:"setup,omitempty"`
		Teardown  []Step    `json:"teardown,omitempty"`
		Variables Vars      `json:"variables,omitempty"`
		Tags      []string  `json:"tags,omitempty"`
	}
)

// CurrentASTVersion is the step-tree schema version written by this
// release of the transformer
const CurrentASTVersion = 2

var (
	ErrScenarioIDEmpty  = errors.New("scenario ID empty")
	ErrScenarioURLEmpty = errors.New("scenario url empty")
	ErrScenarioNoSteps  = errors.New("scenario has no steps")
)

// Now returns the current time as epoch milliseconds, the wire format
// for all timestamps
func Now() int64 {
	return time.Now().UnixMilli()
}

// Validate checks the scenario for structural correctness
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return ErrScenarioIDEmpty
	}
	if s.URL == "" {
		return ErrScenarioURLEmpty
	}
	if len(s.Steps) == 0 {
		return ErrScenarioNoSteps
	}
	if err := ValidateSteps(s.Setup); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := ValidateSteps(s.Steps); err != nil {
		return err
	}
	if err := ValidateSteps(s.Teardown); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}
	return nil
}

// Apply overlays the patch onto the scenario, bumping UpdatedAt
func (s *Scenario) Apply(p *ScenarioPatch) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.URL != nil {
		s.URL = *p.URL
	}
	if p.Viewport != nil {
		s.Viewport = p.Viewport
	}
	if p.Steps != nil {
		s.Steps = p.Steps
	}
	if p.Setup != nil {
		s.Setup = p.Setup
	}
	if p.Teardown != nil {
		s.Teardown = p.Teardown
	}
	if p.Variables != nil {
		s.Variables = p.Variables
	}
	if p.Tags != nil {
		s.Tags = p.Tags
	}
	s.UpdatedAt = Now()
}

// Merge returns a copy of the receiver overlaid with the given
// bindings; overlay values win on key collisions
func (v Vars) Merge(overlay Vars) Vars {
	res := make(Vars, len(v)+len(overlay))
	for k, val := range v {
		res[k] = val
	}
	for k, val := range overlay {
		res[k] = val
	}
	return res
}
