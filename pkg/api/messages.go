package api

import "encoding/json"

type (
	// MessageType tags execution events on the push channel
	MessageType string

	// ExecutionEvent is the union-tagged message broadcast to
	// subscribers of a scenario execution. Fields beyond Type are
	// populated per message kind
	ExecutionEvent struct {
		Result      *ScenarioExecutionResult `json:"result,omitempty"`
		StepResult  *StepResult              `json:"stepResult,omitempty"`
		Type        MessageType              `json:"type"`
		ExecutionID ExecutionID              `json:"executionId,omitempty"`
		ScenarioID  ScenarioID               `json:"scenarioId,omitempty"`
		Message     string                   `json:"message,omitempty"`
		Error       string                   `json:"error,omitempty"`
		TotalSteps  int                      `json:"totalSteps,omitempty"`
		StepIndex   int                      `json:"stepIndex,omitempty"`
		Timestamp   int64                    `json:"timestamp,omitempty"`
	}

	// ClientMessage is sent by push-channel clients to manage their
	// execution subscriptions
	ClientMessage struct {
		Type        MessageType `json:"type"`
		ExecutionID ExecutionID `json:"executionId"`
	}

	// ExecutionStatus reports whether an execution is live
	ExecutionStatus struct {
		Active     bool       `json:"active"`
		ScenarioID ScenarioID `json:"scenarioId,omitempty"`
		StartedAt  int64      `json:"startedAt,omitempty"`
	}
)

const (
	MessageStarted      MessageType = "started"
	MessageStepStart    MessageType = "step_start"
	MessageStepComplete MessageType = "step_complete"
	MessageCompleted    MessageType = "completed"
	MessageError        MessageType = "error"
	MessageSubscribed   MessageType = "subscribed"
	MessageUnsubscribed MessageType = "unsubscribed"
	MessageConnected    MessageType = "connected"
	MessageSubscribe    MessageType = "subscribe"
	MessageUnsubscribe  MessageType = "unsubscribe"
)

// Encode renders the event for the wire, stamping the timestamp if the
// caller left it zero
func (e *ExecutionEvent) Encode() []byte {
	if e.Timestamp == 0 {
		e.Timestamp = Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		// all event fields are plain data; marshal cannot fail
		return nil
	}
	return data
}
