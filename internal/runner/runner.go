// Package runner defines the driver port the scenario service drives a
// browser through. The real driver lives outside this process; the
// core only depends on this capability
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// ScenarioRunner executes a scenario against a browser and reports
	// step-by-step outcomes. Init and Close bracket every run
	ScenarioRunner interface {
		Init(ctx context.Context) error
		Run(
			ctx context.Context, s *api.Scenario, vars api.Vars,
		) (*api.ScenarioExecutionResult, error)
		Close() error
	}

	// Options configures driver construction
	Options struct {
		Viewport            *api.Viewport
		BaseURL             string
		UserAgent           string
		Environment         string
		DefaultTimeout      time.Duration
		Headless            bool
		ScreenshotOnFailure bool
		ContinueOnFailure   bool
	}

	// Overrides carries caller-supplied option fields; nil fields leave
	// the construction defaults in place
	Overrides struct {
		Viewport            *api.Viewport `json:"viewport,omitempty"`
		BaseURL             *string       `json:"baseUrl,omitempty"`
		UserAgent           *string       `json:"userAgent,omitempty"`
		Environment         *string       `json:"environment,omitempty"`
		DefaultTimeoutMs    *int64        `json:"defaultTimeoutMs,omitempty"`
		Headless            *bool         `json:"headless,omitempty"`
		ScreenshotOnFailure *bool         `json:"screenshotOnFailure,omitempty"`
		ContinueOnFailure   *bool         `json:"continueOnFailure,omitempty"`
	}

	// Factory constructs a driver for one execution
	Factory func(opts *Options) (ScenarioRunner, error)
)

const DefaultTimeout = 30 * time.Second

var ErrNoDriver = errors.New("no scenario driver configured")

// DefaultOptions returns the construction defaults
func DefaultOptions() *Options {
	return &Options{
		Headless:            true,
		ScreenshotOnFailure: true,
		DefaultTimeout:      DefaultTimeout,
	}
}

// Resolve overlays the overrides onto the construction defaults
func (o *Overrides) Resolve() *Options {
	res := DefaultOptions()
	if o == nil {
		return res
	}
	if o.Viewport != nil {
		res.Viewport = o.Viewport
	}
	if o.BaseURL != nil {
		res.BaseURL = *o.BaseURL
	}
	if o.UserAgent != nil {
		res.UserAgent = *o.UserAgent
	}
	if o.Environment != nil {
		res.Environment = *o.Environment
	}
	if o.DefaultTimeoutMs != nil {
		res.DefaultTimeout = time.Duration(*o.DefaultTimeoutMs) *
			time.Millisecond
	}
	if o.Headless != nil {
		res.Headless = *o.Headless
	}
	if o.ScreenshotOnFailure != nil {
		res.ScreenshotOnFailure = *o.ScreenshotOnFailure
	}
	if o.ContinueOnFailure != nil {
		res.ContinueOnFailure = *o.ContinueOnFailure
	}
	return res
}
