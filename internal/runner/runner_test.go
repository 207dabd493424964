package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/pkg/api"
)

func TestOverridesResolveDefaults(t *testing.T) {
	opts := (*runner.Overrides)(nil).Resolve()

	assert.True(t, opts.Headless)
	assert.True(t, opts.ScreenshotOnFailure)
	assert.False(t, opts.ContinueOnFailure)
	assert.Equal(t, runner.DefaultTimeout, opts.DefaultTimeout)
}

func TestOverridesResolveCallerWins(t *testing.T) {
	headless := false
	base := "https://stage.test"
	timeout := int64(5000)

	opts := (&runner.Overrides{
		Headless:         &headless,
		BaseURL:          &base,
		DefaultTimeoutMs: &timeout,
	}).Resolve()

	assert.False(t, opts.Headless)
	assert.True(t, opts.ScreenshotOnFailure)
	assert.Equal(t, "https://stage.test", opts.BaseURL)
	assert.Equal(t, 5*time.Second, opts.DefaultTimeout)
}

func TestFakeSynthesizesPassedRun(t *testing.T) {
	fake := runner.NewFake()
	s := &api.Scenario{
		ID:  "scenario-abc",
		URL: "https://shop.test/",
		Steps: []api.Step{
			{Type: api.StepNavigate, URL: "/"},
			{Type: api.StepSnapshotDOM},
		},
	}

	res, err := fake.Run(context.Background(), s, api.Vars{"k": "v"})
	require.NoError(t, err)

	assert.True(t, res.Summary.Success)
	assert.Equal(t, 2, res.Summary.TotalSteps)
	assert.Equal(t, 2, res.Summary.Passed)
	require.Len(t, res.StepResults, 2)
	assert.Equal(t, 1, res.StepResults[1].Index)

	runs := fake.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, api.Vars{"k": "v"}, runs[0].Vars)
}

func TestFakeScriptedFailure(t *testing.T) {
	fake := runner.NewFake()
	fake.FailSteps["scenario-abc"] = []int{1}
	fake.APIBodies["scenario-abc"] = map[string]any{"ok": false}

	s := &api.Scenario{
		ID:  "scenario-abc",
		URL: "https://shop.test/",
		Steps: []api.Step{
			{Type: api.StepNavigate, URL: "/"},
			{Type: api.StepSnapshotDOM},
		},
	}
	res, err := fake.Run(context.Background(), s, nil)
	require.NoError(t, err)

	assert.False(t, res.Summary.Success)
	assert.Equal(t, 1, res.Summary.Failed)
	require.NotNil(t, res.StepResults[1].Error)
	require.Len(t, res.APICalls, 1)
	assert.Equal(t, map[string]any{"ok": false}, res.LastAPIResponse())
}

func TestFakeFactoryRecordsOptions(t *testing.T) {
	fake := runner.NewFake()
	factory := fake.Factory()

	opts := (*runner.Overrides)(nil).Resolve()
	d, err := factory(opts)
	require.NoError(t, err)
	require.NoError(t, d.Init(context.Background()))
	require.NoError(t, d.Close())

	assert.Same(t, opts, fake.Options())
	inits, closes := fake.Counts()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, closes)
}
