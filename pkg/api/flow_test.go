package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replaykit/replay/pkg/api"
)

func linearFlow() *api.UserFlow {
	return &api.UserFlow{
		ID:   "flow-test",
		Name: "linear",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			{ID: "run", Type: api.NodeScenario, ScenarioID: "scenario-a"},
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "run"},
			{Source: "run", Target: "end"},
		},
	}
}

func TestFlowValidate(t *testing.T) {
	assert.NoError(t, linearFlow().Validate())
}

func TestFlowValidateNoStart(t *testing.T) {
	f := linearFlow()
	f.Nodes = f.Nodes[1:]
	f.Edges = f.Edges[1:]
	assert.ErrorIs(t, f.Validate(), api.ErrFlowNoStartNode)
}

func TestFlowValidateDuplicateNode(t *testing.T) {
	f := linearFlow()
	f.Nodes = append(f.Nodes, api.FlowNode{ID: "run", Type: api.NodeEnd})
	assert.ErrorIs(t, f.Validate(), api.ErrDuplicateNodeID)
}

func TestFlowValidateDanglingEdge(t *testing.T) {
	f := linearFlow()
	f.Edges = append(f.Edges, api.FlowEdge{Source: "run", Target: "ghost"})
	assert.ErrorIs(t, f.Validate(), api.ErrEdgeUnknownNode)
}

func TestFlowValidateConditionHandles(t *testing.T) {
	f := &api.UserFlow{
		ID: "flow-cond",
		Nodes: []api.FlowNode{
			{ID: "start", Type: api.NodeStart},
			{ID: "check", Type: api.NodeCondition, Condition: &api.Condition{
				Left:     "{{ x }}",
				Operator: api.OpExists,
			}},
			{ID: "end", Type: api.NodeEnd},
		},
		Edges: []api.FlowEdge{
			{Source: "start", Target: "check"},
			{Source: "check", Target: "end", SourceHandle: "true"},
			{Source: "check", Target: "end", SourceHandle: "false"},
		},
	}
	assert.NoError(t, f.Validate())

	f.Edges = append(f.Edges,
		api.FlowEdge{Source: "check", Target: "end", SourceHandle: "true"})
	assert.ErrorIs(t, f.Validate(), api.ErrDuplicateHandle)

	f.Edges[3].SourceHandle = "maybe"
	assert.ErrorIs(t, f.Validate(), api.ErrInvalidHandle)
}

func TestFlowValidateScenarioNode(t *testing.T) {
	f := linearFlow()
	f.Nodes[1].ScenarioID = ""
	assert.ErrorIs(t, f.Validate(), api.ErrNodeScenarioIDEmpty)
}

func TestOutEdgesOrder(t *testing.T) {
	f := linearFlow()
	f.Edges = append(f.Edges,
		api.FlowEdge{Source: "start", Target: "end"})
	edges := f.OutEdges("start")
	assert.Len(t, edges, 2)
	assert.Equal(t, api.NodeID("run"), edges[0].Target)
	assert.Equal(t, api.NodeID("end"), edges[1].Target)
}

func TestOperatorIsUnary(t *testing.T) {
	assert.True(t, api.OpExists.IsUnary())
	assert.True(t, api.OpIsEmpty.IsUnary())
	assert.False(t, api.OpEq.IsUnary())
	assert.False(t, api.OpMatches.IsUnary())
}
