package api

import (
	"errors"
	"fmt"
)

type (
	// StepType names the kind of a scenario step
	StepType string

	// Step is one atomic action or assertion against the browser. The
	// type tag selects which of the kind-specific fields apply; fields
	// for other kinds are left zero. Steps that target a DOM element
	// carry a Selector. Optional steps record failures without failing
	// the scenario
	Step struct {
		Selector *Selector     `json:"selector,omitempty"`
		Assert   *AssertConfig `json:"assert,omitempty"`
		API      *APIAssert    `json:"api,omitempty"`
		ID       string        `json:"id,omitempty"`
		Type     StepType      `json:"type"`
		URL      string        `json:"url,omitempty"`
		Value    string        `json:"value,omitempty"`
		Key      string        `json:"key,omitempty"`
		ScrollX  int           `json:"scrollX,omitempty"`
		ScrollY  int           `json:"scrollY,omitempty"`
		WaitMs   int64         `json:"waitMs,omitempty"`
		Optional bool          `json:"optional,omitempty"`
		// Sensitive marks typed values that must be masked in results
		Sensitive bool `json:"sensitive,omitempty"`
	}

	// AssertConfig configures an assertElement step
	AssertConfig struct {
		Mode     AssertMode `json:"mode"`
		Expected string     `json:"expected,omitempty"`
	}

	// APIAssert configures an assertApi step, matched against API calls
	// observed by the driver during the run
	APIAssert struct {
		URLPattern     string `json:"urlPattern"`
		Method         string `json:"method,omitempty"`
		ExpectedStatus int    `json:"expectedStatus,omitempty"`
	}

	// AssertMode names the element assertion performed
	AssertMode string

	// Viewport is the browser window size used for a scenario
	Viewport struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
)

const (
	StepNavigate      StepType = "navigate"
	StepClick         StepType = "click"
	StepTypeText      StepType = "type"
	StepKeypress      StepType = "keypress"
	StepHover         StepType = "hover"
	StepScroll        StepType = "scroll"
	StepSelect        StepType = "select"
	StepWait          StepType = "wait"
	StepSnapshotDOM   StepType = "snapshotDom"
	StepAssertElement StepType = "assertElement"
	StepAssertAPI     StepType = "assertApi"
)

const (
	AssertExists  AssertMode = "exists"
	AssertVisible AssertMode = "visible"
	AssertText    AssertMode = "text"
)

var (
	ErrInvalidStepType   = errors.New("invalid step type")
	ErrStepURLEmpty      = errors.New("step url empty")
	ErrStepKeyEmpty      = errors.New("step key empty")
	ErrSelectorRequired  = errors.New("step requires a selector")
	ErrAssertRequired    = errors.New("assertElement requires assert config")
	ErrAPIAssertRequired = errors.New("assertApi requires api config")
	ErrWaitNotPositive   = errors.New("wait duration must be positive")
)

// stepsNeedingSelector lists the step kinds that target a DOM element
var stepsNeedingSelector = map[StepType]struct{}{
	StepClick:         {},
	StepTypeText:      {},
	StepHover:         {},
	StepSelect:        {},
	StepAssertElement: {},
}

// TargetsElement reports whether the step kind addresses a DOM element
func (t StepType) TargetsElement() bool {
	_, ok := stepsNeedingSelector[t]
	return ok
}

// Validate checks the step for structural correctness
func (s *Step) Validate() error {
	switch s.Type {
	case StepNavigate:
		if s.URL == "" {
			return ErrStepURLEmpty
		}
	case StepKeypress:
		if s.Key == "" {
			return ErrStepKeyEmpty
		}
	case StepWait:
		if s.WaitMs <= 0 {
			return ErrWaitNotPositive
		}
	case StepAssertElement:
		if s.Assert == nil {
			return ErrAssertRequired
		}
	case StepAssertAPI:
		if s.API == nil || s.API.URLPattern == "" {
			return ErrAPIAssertRequired
		}
	case StepClick, StepTypeText, StepHover, StepScroll, StepSelect,
		StepSnapshotDOM:
		// selector requirement checked below
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStepType, s.Type)
	}

	if s.Type.TargetsElement() {
		if s.Selector == nil {
			return fmt.Errorf("%w: %s", ErrSelectorRequired, s.Type)
		}
		return s.Selector.Validate()
	}
	return nil
}

// ValidateSteps validates a step sequence, reporting the first failure
// with its index
func ValidateSteps(steps []Step) error {
	for i := range steps {
		if err := steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
