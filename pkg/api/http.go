package api

type (
	// ErrorResponse is the JSON body returned for failed HTTP requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	// ScenarioListResponse wraps a scenario listing
	ScenarioListResponse struct {
		Scenarios []*Scenario `json:"scenarios"`
		Count     int         `json:"count"`
	}

	// SessionListResponse wraps a recording session listing
	SessionListResponse struct {
		Sessions []*RecordingSession `json:"sessions"`
		Count    int                 `json:"count"`
	}

	// FlowListResponse wraps a user flow listing
	FlowListResponse struct {
		Flows []*UserFlow `json:"flows"`
		Count int         `json:"count"`
	}

	// ResultListResponse wraps a scenario result listing
	ResultListResponse struct {
		Results []*StoredResult `json:"results"`
		Count   int             `json:"count"`
	}

	// FlowResultListResponse wraps a flow result listing
	FlowResultListResponse struct {
		Results []*FlowExecutionResult `json:"results"`
		Count   int                    `json:"count"`
	}

	// EventsAcceptedResponse reports how many events of a recorder
	// batch were newly accepted
	EventsAcceptedResponse struct {
		Accepted int `json:"accepted"`
	}

	// FlattenResponse carries a flow's scenario IDs in topological
	// order
	FlattenResponse struct {
		ScenarioIDs []ScenarioID `json:"scenarioIds"`
	}
)
