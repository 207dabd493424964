// Package transform reduces a recorded event stream into the canonical
// step sequence of a scenario
package transform

import (
	"net/url"
	"sort"

	"github.com/replaykit/replay/internal/selector"
	"github.com/replaykit/replay/pkg/api"
)

type (
	// Options tunes the reduction. BaseURL is the recording's starting
	// URL; navigations to the same origin are rewritten relative to it
	Options struct {
		BaseURL  string
		Selector selector.Options
	}
)

const enterKey = "Enter"

// FromSession reduces a session's events using the session URL as the
// origin for relativizing navigations
func FromSession(
	session *api.RecordingSession, events []api.RecordedEvent,
) []api.Step {
	return Steps(events, Options{BaseURL: session.URL})
}

// Steps reduces a time-ordered event stream into steps. Events are
// stably reordered by timestamp first, then each event maps to at most
// one step, then adjacent type steps against the same selector collapse
func Steps(events []api.RecordedEvent, opts Options) []api.Step {
	ordered := make([]api.RecordedEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	steps := make([]api.Step, 0, len(ordered))
	for i := range ordered {
		if s, ok := reduce(&ordered[i], &opts); ok {
			steps = append(steps, s)
		}
	}
	return MergeTypeSteps(steps)
}

// reduce maps one event to its step, or reports false for events that
// produce no step (intermediate input, non-Enter keys, targets with no
// derivable selector)
func reduce(e *api.RecordedEvent, opts *Options) (api.Step, bool) {
	switch e.Type {
	case api.EventNavigation:
		return api.Step{
			ID:   e.ID,
			Type: api.StepNavigate,
			URL:  relativeURL(opts.BaseURL, e.URL),
		}, true

	case api.EventClick:
		return elementStep(e, api.StepClick, opts)

	case api.EventBlur:
		if e.Value == "" {
			return api.Step{}, false
		}
		s, ok := elementStep(e, api.StepTypeText, opts)
		if !ok {
			return api.Step{}, false
		}
		s.Value = e.Value
		s.Sensitive = e.IsSensitive
		return s, true

	case api.EventKeydown:
		if e.Key != enterKey {
			return api.Step{}, false
		}
		return api.Step{
			ID:       e.ID,
			Type:     api.StepKeypress,
			Key:      e.Key,
			Selector: targetSelector(e, opts),
		}, true

	case api.EventHover:
		return elementStep(e, api.StepHover, opts)

	case api.EventScroll:
		return api.Step{
			ID:      e.ID,
			Type:    api.StepScroll,
			ScrollX: e.ScrollX,
			ScrollY: e.ScrollY,
		}, true

	case api.EventSelect:
		s, ok := elementStep(e, api.StepSelect, opts)
		if !ok {
			return api.Step{}, false
		}
		s.Value = e.Value
		return s, true

	default:
		return api.Step{}, false
	}
}

// elementStep builds a step for a kind that requires a selector,
// dropping the event when none can be derived
func elementStep(
	e *api.RecordedEvent, t api.StepType, opts *Options,
) (api.Step, bool) {
	sel := targetSelector(e, opts)
	if sel == nil {
		return api.Step{}, false
	}
	return api.Step{ID: e.ID, Type: t, Selector: sel}, true
}

func targetSelector(e *api.RecordedEvent, opts *Options) *api.Selector {
	if e.Target == nil {
		return nil
	}
	r, err := selector.Prioritize(e.Target, opts.Selector)
	if err != nil {
		return nil
	}
	res := r.Primary.Selector
	return &res
}

// MergeTypeSteps collapses adjacent type steps against the same
// selector, keeping the later value. Applied once, left to right
func MergeTypeSteps(steps []api.Step) []api.Step {
	res := make([]api.Step, 0, len(steps))
	for _, s := range steps {
		if s.Type == api.StepTypeText && len(res) > 0 {
			last := &res[len(res)-1]
			if last.Type == api.StepTypeText && sameSelector(last, &s) {
				*last = s
				continue
			}
		}
		res = append(res, s)
	}
	return res
}

func sameSelector(a, b *api.Step) bool {
	if a.Selector == nil || b.Selector == nil {
		return a.Selector == b.Selector
	}
	return *a.Selector == *b.Selector
}

// relativeURL rewrites raw as a root-relative path when it shares the
// base URL's origin, otherwise returns it unchanged
func relativeURL(base, raw string) string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return raw
	}
	r, err := url.Parse(raw)
	if err != nil || r.Host == "" {
		return raw
	}
	if b.Scheme != r.Scheme || b.Host != r.Host {
		return raw
	}

	p := r.Path
	if p == "" {
		p = "/"
	}
	if r.RawQuery != "" {
		p += "?" + r.RawQuery
	}
	if r.Fragment != "" {
		p += "#" + r.Fragment
	}
	return p
}
