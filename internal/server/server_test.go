package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replay/internal/flow"
	"github.com/replaykit/replay/internal/ingest"
	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/internal/scenario"
	"github.com/replaykit/replay/internal/server"
	"github.com/replaykit/replay/pkg/api"
)

type testEnv struct {
	store  repo.Store
	fake   *runner.Fake
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvDeps(t, nil)
}

func newTestEnvDeps(
	t *testing.T, mod func(*server.Dependencies),
) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	store := repo.NewRedis(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })

	ing, err := ingest.NewService(store.Sessions(), store.Scenarios())
	require.NoError(t, err)

	fake := runner.NewFake()
	exec := scenario.NewService(store.Scenarios(), fake.Factory())
	flows := flow.NewService(store.Flows(), flow.NewEngine(exec))

	deps := server.Dependencies{
		Store:    store,
		Ingest:   ing,
		Executor: exec,
		Flows:    flows,
	}
	if mod != nil {
		mod(&deps)
	}
	srv := server.NewServer(deps)
	return &testEnv{
		store:  store,
		fake:   fake,
		router: srv.SetupRoutes(),
	}
}

func (e *testEnv) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	res := new(T)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), res))
	return res
}

func testScenarioBody() *api.Scenario {
	return &api.Scenario{
		URL: "https://shop.test/",
		Steps: []api.Step{
			{Type: api.StepNavigate, URL: "/"},
			{Type: api.StepClick, Selector: &api.Selector{
				Strategy: api.StrategyCSS, Value: "#buy",
			}},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScenarioCRUDOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/scenarios", testScenarioBody())
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[api.Scenario](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, api.CurrentASTVersion, created.ASTVersion)

	w = e.do(t, "GET", "/api/scenarios/"+string(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET", "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.ScenarioListResponse](t, w)
	assert.Equal(t, 1, list.Count)

	name := "checkout"
	w = e.do(t, "PUT", "/api/scenarios/"+string(created.ID),
		&api.ScenarioPatch{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[api.Scenario](t, w)
	assert.Equal(t, "checkout", updated.Name)

	w = e.do(t, "DELETE", "/api/scenarios/"+string(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, "GET", "/api/scenarios/"+string(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListScenariosPaged(t *testing.T) {
	e := newTestEnv(t)
	for range 3 {
		w := e.do(t, "POST", "/api/scenarios", testScenarioBody())
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := e.do(t, "GET", "/api/scenarios?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.ScenarioListResponse](t, w)
	assert.Equal(t, 1, list.Count)
}

func TestCreateScenarioRejectsInvalid(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/scenarios", &api.Scenario{
		URL: "https://shop.test/",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := decode[api.ErrorResponse](t, w)
	assert.Contains(t, res.Error, "no steps")
}

func TestExecuteScenarioOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/scenarios", testScenarioBody())
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[api.Scenario](t, w)

	w = e.do(t, "POST",
		"/api/scenarios/"+string(created.ID)+"/execute", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[api.ScenarioExecutionResult](t, w)
	assert.True(t, res.Summary.Success)
	assert.Equal(t, 2, res.Summary.TotalSteps)

	w = e.do(t, "GET",
		"/api/scenarios/"+string(created.ID)+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[api.ResultListResponse](t, w)
	assert.Equal(t, 1, stored.Count)
}

func TestExecuteScenarioNotFound(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/api/scenarios/scenario-ghost/execute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionRecordingOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/sessions", &ingest.StartRequest{
		Name: "signup",
		URL:  "https://shop.test/signup",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[api.RecordingSession](t, w)

	events := []api.RecordedEvent{
		{ID: "e1", Type: api.EventClick, Timestamp: 100,
			Target: &api.ElementInfo{Tag: "input", CSSPath: "#email"}},
		{ID: "e2", Type: api.EventBlur, Timestamp: 200,
			Value: "a@b.test",
			Target: &api.ElementInfo{
				Tag: "input", CSSPath: "#email",
			}},
	}
	w = e.do(t, "POST",
		"/api/sessions/"+string(session.ID)+"/events", events)
	require.Equal(t, http.StatusOK, w.Code)
	accepted := decode[api.EventsAcceptedResponse](t, w)
	assert.Equal(t, 2, accepted.Accepted)

	// replaying the batch accepts nothing new
	w = e.do(t, "POST",
		"/api/sessions/"+string(session.ID)+"/events", events)
	require.Equal(t, http.StatusOK, w.Code)
	accepted = decode[api.EventsAcceptedResponse](t, w)
	assert.Equal(t, 0, accepted.Accepted)

	w = e.do(t, "POST",
		"/api/sessions/"+string(session.ID)+"/finish", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[api.Scenario](t, w)
	assert.Equal(t, "signup", created.Name)
	assert.NotEmpty(t, created.Steps)
}

func TestSessionUpdateOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/sessions", &ingest.StartRequest{
		URL: "https://shop.test/",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[api.RecordingSession](t, w)

	name := "renamed"
	w = e.do(t, "PUT", "/api/sessions/"+string(session.ID),
		&api.SessionPatch{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[api.RecordingSession](t, w)
	assert.Equal(t, "renamed", updated.Name)

	w = e.do(t, "PUT", "/api/sessions/session-ghost",
		&api.SessionPatch{Name: &name})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSessionWithEvents(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/sessions", &ingest.StartRequest{
		URL: "https://shop.test/",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[api.RecordingSession](t, w)

	events := []api.RecordedEvent{
		{ID: "e1", Type: api.EventClick, Timestamp: 100,
			Target: &api.ElementInfo{Tag: "button", CSSPath: "#buy"}},
	}
	w = e.do(t, "POST",
		"/api/sessions/"+string(session.ID)+"/events", events)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET",
		"/api/sessions/"+string(session.ID)+"?include=events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[api.SessionWithEvents](t, w)
	assert.Equal(t, session.ID, full.ID)
	require.Len(t, full.Events, 1)
	assert.Equal(t, "e1", full.Events[0].ID)
}

func TestAppendEventsRejectsBadBatch(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/sessions", &ingest.StartRequest{
		URL: "https://shop.test/",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[api.RecordingSession](t, w)

	w = e.do(t, "POST",
		"/api/sessions/"+string(session.ID)+"/events",
		[]map[string]any{{"type": "click"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlowExecuteOverHTTP(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/scenarios", testScenarioBody())
	require.Equal(t, http.StatusCreated, w.Code)
	sc := decode[api.Scenario](t, w)

	f := &api.UserFlow{
		Name: "linear",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			{ID: "a", Type: api.NodeScenario, ScenarioID: sc.ID},
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "end"},
		},
	}
	w = e.do(t, "POST", "/api/flows", f)
	require.Equal(t, http.StatusCreated, w.Code)
	flowRec := decode[api.UserFlow](t, w)

	w = e.do(t, "POST",
		"/api/flows/"+string(flowRec.ID)+"/execute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[api.FlowExecutionResult](t, w)
	assert.Equal(t, api.StatusPassed, res.Status)
	assert.Equal(t, 1, res.TotalNodes)
	assert.Equal(t, 2, res.TotalSteps)

	w = e.do(t, "GET",
		"/api/flows/"+string(flowRec.ID)+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[api.FlowResultListResponse](t, w)
	assert.Equal(t, 1, stored.Count)

	w = e.do(t, "GET",
		"/api/flows/"+string(flowRec.ID)+"/flatten", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flat := decode[api.FlattenResponse](t, w)
	assert.Equal(t, []api.ScenarioID{sc.ID}, flat.ScenarioIDs)
}

func TestExecuteFlowUsesConfiguredDeadline(t *testing.T) {
	e := newTestEnvDeps(t, func(d *server.Dependencies) {
		d.MaxFlowTime = time.Nanosecond
	})

	w := e.do(t, "POST", "/api/scenarios", testScenarioBody())
	require.Equal(t, http.StatusCreated, w.Code)
	sc := decode[api.Scenario](t, w)

	f := &api.UserFlow{
		Name: "deadline",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			{ID: "a", Type: api.NodeScenario, ScenarioID: sc.ID},
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "end"},
		},
	}
	w = e.do(t, "POST", "/api/flows", f)
	require.Equal(t, http.StatusCreated, w.Code)
	flowRec := decode[api.UserFlow](t, w)

	// the configured limit applies when the request carries none
	w = e.do(t, "POST",
		"/api/flows/"+string(flowRec.ID)+"/execute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[api.FlowExecutionResult](t, w)
	assert.Equal(t, api.StatusFailed, res.Status)
	assert.Zero(t, res.TotalNodes)

	// an explicit request deadline overrides it
	w = e.do(t, "POST",
		"/api/flows/"+string(flowRec.ID)+"/execute",
		map[string]any{"maxExecutionTimeMs": 60000})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[api.FlowExecutionResult](t, w)
	assert.Equal(t, api.StatusPassed, res.Status)
	assert.Equal(t, 1, res.TotalNodes)
}

func TestCreateFlowRejectsInvalidGraph(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/flows", &api.UserFlow{
		Name:  "broken",
		Nodes: []api.FlowNode{{ID: "end", Type: api.NodeEnd}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := decode[api.ErrorResponse](t, w)
	assert.Contains(t, res.Error, "no start node")
}
