package api

import "errors"

type (
	// SessionStatus is the lifecycle state of a recording session
	SessionStatus string

	// RecordingSession groups the raw events captured by the browser
	// extension during one recording
	RecordingSession struct {
		Viewport  *Viewport     `json:"viewport,omitempty"`
		ID        SessionID     `json:"id"`
		Name      string        `json:"name,omitempty"`
		URL       string        `json:"url"`
		Status    SessionStatus `json:"status"`
		StartedAt int64         `json:"startedAt"`
		StoppedAt int64         `json:"stoppedAt,omitempty"`
	}

	// RecordedEvent is one raw UI event captured by the recorder. The
	// type tag selects which kind-specific fields apply
	RecordedEvent struct {
		Target      *ElementInfo `json:"target,omitempty"`
		ID          string       `json:"id"`
		Type        EventType    `json:"type"`
		URL         string       `json:"url,omitempty"`
		Value       string       `json:"value,omitempty"`
		Key         string       `json:"key,omitempty"`
		ScrollX     int          `json:"scrollX,omitempty"`
		ScrollY     int          `json:"scrollY,omitempty"`
		Timestamp   int64        `json:"timestamp"`
		IsSensitive bool         `json:"isSensitive,omitempty"`
	}

	// SessionPatch carries partial updates to a recording session.
	// Nil fields leave the stored value untouched
	SessionPatch struct {
		Name     *string   `json:"name,omitempty"`
		Viewport *Viewport `json:"viewport,omitempty"`
	}

	// SessionWithEvents pairs a session with its recorded events
	SessionWithEvents struct {
		RecordingSession
		Events []RecordedEvent `json:"events"`
	}

	// EventType names the kind of a raw recorded event
	EventType string

	// ElementInfo carries the observable attributes of an event's
	// target element, the input to selector generation
	ElementInfo struct {
		Tag       string   `json:"tag"`
		TestID    string   `json:"testId,omitempty"`
		Role      string   `json:"role,omitempty"`
		AriaLabel string   `json:"ariaLabel,omitempty"`
		Text      string   `json:"text,omitempty"`
		ElementID string   `json:"elementId,omitempty"`
		InputName string   `json:"name,omitempty"`
		Classes   []string `json:"classes,omitempty"`
		CSSPath   string   `json:"cssPath,omitempty"`
		XPath     string   `json:"xpath,omitempty"`
		// IsUnique reports whether the recorder saw the CSS path match
		// exactly one element
		IsUnique bool `json:"isUnique,omitempty"`
	}
)

const (
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
)

const (
	EventNavigation EventType = "navigation"
	EventClick      EventType = "click"
	EventInput      EventType = "input"
	EventBlur       EventType = "blur"
	EventKeydown    EventType = "keydown"
	EventHover      EventType = "hover"
	EventScroll     EventType = "scroll"
	EventSelect     EventType = "select"
)

var (
	ErrSessionIDEmpty  = errors.New("session ID empty")
	ErrSessionURLEmpty = errors.New("session url empty")
	ErrEventIDEmpty    = errors.New("event ID empty")
	ErrSessionStopped  = errors.New("session already stopped")
)

// Validate checks the session for structural correctness
func (s *RecordingSession) Validate() error {
	if s.ID == "" {
		return ErrSessionIDEmpty
	}
	if s.URL == "" {
		return ErrSessionURLEmpty
	}
	return nil
}

// Validate checks the event for structural correctness
func (e *RecordedEvent) Validate() error {
	if e.ID == "" {
		return ErrEventIDEmpty
	}
	return nil
}

// Apply overlays the patch's non-nil fields onto the session
func (s *RecordingSession) Apply(p *SessionPatch) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Viewport != nil {
		s.Viewport = p.Viewport
	}
}
