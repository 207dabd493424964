package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replay/internal/flow"
	"github.com/replaykit/replay/pkg/api"
)

func TestFlattenLinearOrder(t *testing.T) {
	ids := flow.Flatten(&api.UserFlow{
		ID: "flow-linear",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			scenarioNode("a", "scenario-a"),
			scenarioNode("b", "scenario-b"),
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "end"},
		},
	})

	assert.Equal(t,
		[]api.ScenarioID{"scenario-a", "scenario-b"}, ids)
}

func TestFlattenDiamondRespectsDependencies(t *testing.T) {
	ids := flow.Flatten(&api.UserFlow{
		ID: "flow-diamond",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			scenarioNode("left", "scenario-left"),
			scenarioNode("right", "scenario-right"),
			scenarioNode("join", "scenario-join"),
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "left"},
			{Source: "start", Target: "right"},
			{Source: "left", Target: "join"},
			{Source: "right", Target: "join"},
		},
	})

	require.Len(t, ids, 3)
	assert.Equal(t, api.ScenarioID("scenario-join"), ids[2])
	assert.ElementsMatch(t,
		[]api.ScenarioID{"scenario-left", "scenario-right"}, ids[:2])
}

func TestFlattenSkipsControlNodes(t *testing.T) {
	ids := flow.Flatten(&api.UserFlow{
		ID: "flow-control",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			{
				ID:   "check",
				Type: api.NodeCondition,
				Condition: &api.Condition{
					Left: "x", Operator: api.OpExists,
				},
			},
			scenarioNode("a", "scenario-a"),
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "check"},
			{Source: "check", Target: "a", SourceHandle: "true"},
			{Source: "a", Target: "end"},
		},
	})

	assert.Equal(t, []api.ScenarioID{"scenario-a"}, ids)
}

func TestFlattenCycleStillCoversAllScenarios(t *testing.T) {
	ids := flow.Flatten(&api.UserFlow{
		ID: "flow-cycle",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			scenarioNode("a", "scenario-a"),
			scenarioNode("b", "scenario-b"),
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	})

	assert.ElementsMatch(t,
		[]api.ScenarioID{"scenario-a", "scenario-b"}, ids)
}

func TestFlattenEmptyFlow(t *testing.T) {
	assert.Empty(t, flow.Flatten(&api.UserFlow{ID: "flow-empty"}))
}
