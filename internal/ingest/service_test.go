package ingest_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replay/internal/ingest"
	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/pkg/api"
)

func testService(t *testing.T) (*ingest.Service, repo.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := repo.NewRedis(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })

	svc, err := ingest.NewService(store.Sessions(), store.Scenarios())
	require.NoError(t, err)
	return svc, store
}

func startSession(t *testing.T, svc *ingest.Service) *api.RecordingSession {
	t.Helper()
	session, err := svc.Start(context.Background(), &ingest.StartRequest{
		Name: "checkout recording",
		URL:  "https://shop.test/",
	})
	require.NoError(t, err)
	return session
}

func TestStartRequiresURL(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Start(context.Background(), &ingest.StartRequest{})
	assert.ErrorIs(t, err, ingest.ErrSessionURLNeeded)
}

func TestStartAndStop(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	session := startSession(t, svc)
	assert.Regexp(t, `^session-[0-9a-f]{12}$`, string(session.ID))
	assert.Equal(t, api.SessionActive, session.Status)

	stopped, err := svc.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, api.SessionStopped, stopped.Status)
}

func TestAppendEventsValidated(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	session := startSession(t, svc)

	n, err := svc.AppendEvents(ctx, session.ID, []byte(`[
		{"id":"e1","type":"navigation","timestamp":1,
		 "url":"https://shop.test/cart"},
		{"id":"e2","type":"click","timestamp":2,
		 "target":{"tag":"button","testId":"buy","isUnique":true}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := svc.Events(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, api.EventNavigation, events[0].Type)
	assert.Equal(t, "buy", events[1].Target.TestID)
}

func TestAppendEventsRejectsBadShape(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	session := startSession(t, svc)

	for name, payload := range map[string]string{
		"not json":      `{`,
		"not array":     `{"id":"e1"}`,
		"missing id":    `[{"type":"click","timestamp":1}]`,
		"unknown type":  `[{"id":"e1","type":"swipe","timestamp":1}]`,
		"unknown field": `[{"id":"e1","type":"click","timestamp":1,"x":2}]`,
	} {
		_, err := svc.AppendEvents(ctx, session.ID, []byte(payload))
		assert.ErrorIs(t, err, ingest.ErrInvalidEvents, name)
	}

	events, err := svc.Events(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendEventsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	session := startSession(t, svc)

	batch := []byte(`[{"id":"e1","type":"click","timestamp":1,
		"target":{"tag":"a","testId":"go","isUnique":true}}]`)

	n, err := svc.AppendEvents(ctx, session.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.AppendEvents(ctx, session.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFinishCreatesScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := testService(t)
	session := startSession(t, svc)

	_, err := svc.AppendEvents(ctx, session.ID, []byte(`[
		{"id":"e1","type":"navigation","timestamp":1,
		 "url":"https://shop.test/cart"},
		{"id":"e2","type":"blur","timestamp":2,"value":"he",
		 "target":{"tag":"input","elementId":"q","isUnique":true}},
		{"id":"e3","type":"blur","timestamp":3,"value":"hello",
		 "target":{"tag":"input","elementId":"q","isUnique":true}}
	]`))
	require.NoError(t, err)

	scenario, err := svc.Finish(ctx, session.ID, "search flow")
	require.NoError(t, err)

	assert.Regexp(t, `^scenario-[0-9a-f]{12}$`, string(scenario.ID))
	assert.Equal(t, "search flow", scenario.Name)
	assert.Equal(t, "https://shop.test/", scenario.URL)
	assert.Equal(t, api.CurrentASTVersion, scenario.ASTVersion)

	// navigation relativized, adjacent type steps merged
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, api.StepNavigate, scenario.Steps[0].Type)
	assert.Equal(t, "/cart", scenario.Steps[0].URL)
	assert.Equal(t, api.StepTypeText, scenario.Steps[1].Type)
	assert.Equal(t, "hello", scenario.Steps[1].Value)

	persisted, err := store.Scenarios().Get(ctx, scenario.ID)
	require.NoError(t, err)
	assert.Equal(t, scenario.Steps, persisted.Steps)

	stopped, err := svc.Session(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, api.SessionStopped, stopped.Status)
}

func TestFinishOnStoppedSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	session := startSession(t, svc)

	_, err := svc.AppendEvents(ctx, session.ID, []byte(`[
		{"id":"e1","type":"navigation","timestamp":1,
		 "url":"https://shop.test/cart"}
	]`))
	require.NoError(t, err)

	_, err = svc.Stop(ctx, session.ID)
	require.NoError(t, err)

	scenario, err := svc.Finish(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "checkout recording", scenario.Name)
}

func TestFinishEmptyRecording(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	session := startSession(t, svc)

	_, err := svc.Finish(ctx, session.ID, "empty")
	assert.ErrorIs(t, err, ingest.ErrNothingRecorded)
}
