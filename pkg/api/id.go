package api

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// ScenarioID is a unique identifier for a scenario
	ScenarioID string

	// SessionID is a unique identifier for a recording session
	SessionID string

	// FlowID is a unique identifier for a user flow
	FlowID string

	// NodeID is a unique identifier for a flow node
	NodeID string

	// ExecutionID identifies a live scenario execution
	ExecutionID string

	// ResultID identifies a persisted execution result
	ResultID string
)

// ID prefixes for the entity types persisted by the control plane
const (
	PrefixSession    = "session-"
	PrefixScenario   = "scenario-"
	PrefixFlow       = "flow-"
	PrefixResult     = "result-"
	PrefixFlowResult = "flowresult-"
	PrefixExecution  = "exec-"
)

const shortIDLen = 12

// InvalidIDChars matches characters not permitted in entity IDs. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// NewScenarioID mints a scenario-prefixed identifier
func NewScenarioID() ScenarioID {
	return ScenarioID(PrefixScenario + shortID())
}

// NewSessionID mints a session-prefixed identifier
func NewSessionID() SessionID {
	return SessionID(PrefixSession + shortID())
}

// NewFlowID mints a flow-prefixed identifier
func NewFlowID() FlowID {
	return FlowID(PrefixFlow + shortID())
}

// NewExecutionID mints an exec-prefixed identifier
func NewExecutionID() ExecutionID {
	return ExecutionID(PrefixExecution + shortID())
}

// NewResultID mints a result-prefixed identifier
func NewResultID() ResultID {
	return ResultID(PrefixResult + shortID())
}

// NewFlowResultID mints a flowresult-prefixed identifier
func NewFlowResultID() ResultID {
	return ResultID(PrefixFlowResult + shortID())
}

// SanitizeID lowercases an ID, removes invalid characters, replaces
// spaces with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}

// shortID returns 12 hex characters of fresh entropy
func shortID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:shortIDLen]
}
