package api

type (
	// Status is the outcome of a step, scenario, or node execution
	Status string

	// StepError captures a step failure for persistence
	StepError struct {
		Message string `json:"message"`
		Stack   string `json:"stack,omitempty"`
	}

	// StepResult records the outcome of one executed step
	StepResult struct {
		Error         *StepError `json:"error,omitempty"`
		APIResponse   any        `json:"apiResponse,omitempty"`
		StepID        string     `json:"stepId,omitempty"`
		Status        Status     `json:"status"`
		ScreenshotRef string     `json:"screenshotRef,omitempty"`
		SnapshotRef   string     `json:"snapshotRef,omitempty"`
		Index         int        `json:"index"`
		Duration      int64      `json:"duration"`
	}

	// APICall is one network exchange observed by the driver while a
	// scenario ran
	APICall struct {
		Response any    `json:"response,omitempty"`
		URL      string `json:"url"`
		Method   string `json:"method"`
		Status   int    `json:"status"`
		Time     int64  `json:"time"`
	}

	// Snapshot references a captured DOM snapshot
	Snapshot struct {
		StepIndex int    `json:"stepIndex"`
		Ref       string `json:"ref"`
	}

	// Summary aggregates step counts for a scenario run
	Summary struct {
		TotalSteps int   `json:"totalSteps"`
		Passed     int   `json:"passed"`
		Failed     int   `json:"failed"`
		Skipped    int   `json:"skipped"`
		Duration   int64 `json:"duration"`
		Success    bool  `json:"success"`
	}

	// ScenarioExecutionResult is the full outcome of one scenario run
	ScenarioExecutionResult struct {
		StepResults []StepResult `json:"stepResults"`
		APICalls    []APICall    `json:"apiCalls,omitempty"`
		Snapshots   []Snapshot   `json:"snapshots,omitempty"`
		Summary     Summary      `json:"summary"`
		Environment string       `json:"environment,omitempty"`
		StartedAt   int64        `json:"startedAt"`
	}

	// StoredResult is a persisted scenario execution result
	StoredResult struct {
		Result     ScenarioExecutionResult `json:"result"`
		ID         ResultID                `json:"id"`
		ScenarioID ScenarioID              `json:"scenarioId"`
		Status     Status                  `json:"status"`
		ExecutedAt int64                   `json:"executedAt"`
	}

	// ConditionResult records a condition node's evaluation
	ConditionResult struct {
		LeftValue  any  `json:"leftValue"`
		RightValue any  `json:"rightValue,omitempty"`
		Result     bool `json:"result"`
	}

	// VariableResult records the bindings produced by a variable node
	VariableResult struct {
		Variables Vars `json:"variables"`
	}

	// NodeResult records the outcome of one executed flow node
	NodeResult struct {
		ScenarioResult  *ScenarioExecutionResult `json:"scenarioResult,omitempty"`
		ConditionResult *ConditionResult         `json:"conditionResult,omitempty"`
		VariableResult  *VariableResult          `json:"variableResult,omitempty"`
		Error           *StepError               `json:"error,omitempty"`
		NodeID          NodeID                   `json:"nodeId"`
		NodeType        NodeType                 `json:"nodeType"`
		Status          Status                   `json:"status"`
		Duration        int64                    `json:"duration"`
	}

	// FlowExecutionResult aggregates a full flow run: counts over
	// scenario-kind nodes, step counts summed from their nested
	// results, and the node results in traversal order
	FlowExecutionResult struct {
		NodeResults  []NodeResult `json:"nodeResults"`
		ID           ResultID     `json:"id,omitempty"`
		FlowID       FlowID       `json:"flowId"`
		Status       Status       `json:"status"`
		TotalNodes   int          `json:"totalNodes"`
		PassedNodes  int          `json:"passedNodes"`
		FailedNodes  int          `json:"failedNodes"`
		SkippedNodes int          `json:"skippedNodes"`
		TotalSteps   int          `json:"totalSteps"`
		PassedSteps  int          `json:"passedSteps"`
		FailedSteps  int          `json:"failedSteps"`
		SkippedSteps int          `json:"skippedSteps"`
		StartedAt    int64        `json:"startedAt"`
		EndedAt      int64        `json:"endedAt"`
	}
)

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// LastAPIResponse returns the response body of the final API call
// observed during the run, or nil when none were recorded
func (r *ScenarioExecutionResult) LastAPIResponse() any {
	if len(r.APICalls) == 0 {
		return nil
	}
	return r.APICalls[len(r.APICalls)-1].Response
}

// Recount recomputes the node and step tallies from NodeResults. Only
// scenario-kind results contribute to node counts; step counts sum the
// nested scenario summaries
func (r *FlowExecutionResult) Recount() {
	r.TotalNodes, r.PassedNodes, r.FailedNodes, r.SkippedNodes = 0, 0, 0, 0
	r.TotalSteps, r.PassedSteps, r.FailedSteps, r.SkippedSteps = 0, 0, 0, 0

	for i := range r.NodeResults {
		nr := &r.NodeResults[i]
		if nr.NodeType != NodeScenario {
			continue
		}
		r.TotalNodes++
		switch nr.Status {
		case StatusPassed:
			r.PassedNodes++
		case StatusFailed:
			r.FailedNodes++
		case StatusSkipped:
			r.SkippedNodes++
		}
		if nr.ScenarioResult == nil {
			continue
		}
		sum := nr.ScenarioResult.Summary
		r.TotalSteps += sum.TotalSteps
		r.PassedSteps += sum.Passed
		r.FailedSteps += sum.Failed
		r.SkippedSteps += sum.Skipped
	}
}
