package api

import (
	"errors"
	"fmt"
)

type (
	// NodeType names the kind of a flow node
	NodeType string

	// FlowNode is one node of a user flow graph. The type tag selects
	// which of the kind-specific fields apply
	FlowNode struct {
		Condition   *Condition   `json:"condition,omitempty"`
		ID          NodeID       `json:"id"`
		Type        NodeType     `json:"type"`
		ScenarioID  ScenarioID   `json:"scenarioId,omitempty"`
		Assignments []Assignment `json:"assignments,omitempty"`
		Extractions []Extraction `json:"extractions,omitempty"`
	}

	// FlowEdge is a directed edge between two flow nodes. Condition
	// nodes label their out-edges with the SourceHandle literals
	// "true" and "false"
	FlowEdge struct {
		Source       NodeID `json:"source"`
		Target       NodeID `json:"target"`
		SourceHandle string `json:"sourceHandle,omitempty"`
	}

	// UserFlow is a named directed graph whose nodes include scenarios
	// and control primitives
	UserFlow struct {
		ID               FlowID     `json:"id"`
		Name             string     `json:"name"`
		Nodes            []FlowNode `json:"nodes"`
		Edges            []FlowEdge `json:"edges"`
		InitialVariables Vars       `json:"initialVariables,omitempty"`
		CreatedAt        int64      `json:"createdAt"`
		UpdatedAt        int64      `json:"updatedAt,omitempty"`
	}

	// FlowPatch carries partial updates to a user flow
	FlowPatch struct {
		Name             *string    `json:"name,omitempty"`
		Nodes            []FlowNode `json:"nodes,omitempty"`
		Edges            []FlowEdge `json:"edges,omitempty"`
		InitialVariables Vars       `json:"initialVariables,omitempty"`
	}

	// Condition compares a left operand against an optional right
	// operand. Operands may be {{ name }} variable references, JSON
	// literals, or bare strings
	Condition struct {
		Left     string   `json:"left"`
		Operator Operator `json:"operator"`
		Right    string   `json:"right,omitempty"`
	}

	// CompoundCondition folds multiple conditions with and/or logic
	CompoundCondition struct {
		Logic      LogicOp     `json:"logic"`
		Conditions []Condition `json:"conditions"`
	}

	// Operator names a condition comparison
	Operator string

	// LogicOp combines compound condition branches
	LogicOp string

	// Assignment binds an interpolated, type-coerced value to a name
	// at a setVariable node
	Assignment struct {
		Name  string       `json:"name"`
		Type  VariableType `json:"type"`
		Value string       `json:"value"`
	}

	// Extraction pulls a value from an execution-scoped source into a
	// named variable at an extractVariable node
	Extraction struct {
		VariableName string        `json:"variableName"`
		Source       ExtractSource `json:"source"`
		JSONPath     string        `json:"jsonPath,omitempty"`
		DefaultValue any           `json:"defaultValue,omitempty"`
	}

	// VariableType names the coercion applied to an assignment value
	VariableType string

	// ExtractSource names where an extraction reads from
	ExtractSource string
)

const (
	NodeStart           NodeType = "start"
	NodeEnd             NodeType = "end"
	NodeScenario        NodeType = "scenario"
	NodeCondition       NodeType = "condition"
	NodeSetVariable     NodeType = "setVariable"
	NodeExtractVariable NodeType = "extractVariable"
)

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpMatches    Operator = "matches"
	OpExists     Operator = "exists"
	OpIsEmpty    Operator = "isEmpty"
)

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
)

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarJSON    VariableType = "json"
)

const (
	SourceLastAPIResponse ExtractSource = "lastApiResponse"
	SourceURL             ExtractSource = "url"
	SourceElement         ExtractSource = "element"
	SourceLocalStorage    ExtractSource = "localStorage"
	SourceCookie          ExtractSource = "cookie"
)

// Condition handle literals used on condition-node out-edges
const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

var (
	ErrFlowIDEmpty          = errors.New("flow ID empty")
	ErrFlowNoStartNode      = errors.New("flow has no start node")
	ErrFlowManyStartNodes   = errors.New("flow has multiple start nodes")
	ErrDuplicateNodeID      = errors.New("duplicate node ID")
	ErrEdgeUnknownNode      = errors.New("edge references unknown node")
	ErrInvalidNodeType      = errors.New("invalid node type")
	ErrNodeScenarioIDEmpty  = errors.New("scenario node missing scenarioId")
	ErrNodeConditionMissing = errors.New("condition node missing condition")
	ErrInvalidHandle        = errors.New("invalid condition edge handle")
	ErrDuplicateHandle      = errors.New("duplicate condition edge handle")
)

// unaryOperators take no right operand
var unaryOperators = map[Operator]struct{}{
	OpExists:  {},
	OpIsEmpty: {},
}

// IsUnary reports whether the operator takes no right operand
func (o Operator) IsUnary() bool {
	_, ok := unaryOperators[o]
	return ok
}

// Validate checks graph invariants: exactly one start node, unique
// node IDs, edges referencing existing nodes, and condition out-edges
// carrying at most one "true" and one "false" handle
func (f *UserFlow) Validate() error {
	if f.ID == "" {
		return ErrFlowIDEmpty
	}

	nodes := make(map[NodeID]*FlowNode, len(f.Nodes))
	starts := 0
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if _, ok := nodes[n.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		nodes[n.ID] = n

		if err := n.Validate(); err != nil {
			return err
		}
		if n.Type == NodeStart {
			starts++
		}
	}

	switch {
	case starts == 0:
		return ErrFlowNoStartNode
	case starts > 1:
		return ErrFlowManyStartNodes
	}

	handles := map[NodeID]map[string]struct{}{}
	for _, e := range f.Edges {
		src, ok := nodes[e.Source]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEdgeUnknownNode, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return fmt.Errorf("%w: %s", ErrEdgeUnknownNode, e.Target)
		}

		if src.Type != NodeCondition {
			continue
		}
		if e.SourceHandle != HandleTrue && e.SourceHandle != HandleFalse {
			return fmt.Errorf("%w: %q from %s",
				ErrInvalidHandle, e.SourceHandle, e.Source)
		}
		seen, ok := handles[e.Source]
		if !ok {
			seen = map[string]struct{}{}
			handles[e.Source] = seen
		}
		if _, dup := seen[e.SourceHandle]; dup {
			return fmt.Errorf("%w: %q from %s",
				ErrDuplicateHandle, e.SourceHandle, e.Source)
		}
		seen[e.SourceHandle] = struct{}{}
	}
	return nil
}

// Validate checks node invariants for the node's type
func (n *FlowNode) Validate() error {
	switch n.Type {
	case NodeStart, NodeEnd, NodeSetVariable, NodeExtractVariable:
		return nil
	case NodeScenario:
		if n.ScenarioID == "" {
			return fmt.Errorf("%w: %s", ErrNodeScenarioIDEmpty, n.ID)
		}
		return nil
	case NodeCondition:
		if n.Condition == nil {
			return fmt.Errorf("%w: %s", ErrNodeConditionMissing, n.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q on %s", ErrInvalidNodeType, n.Type, n.ID)
	}
}

// StartNode returns the flow's start node, or nil when absent
func (f *UserFlow) StartNode() *FlowNode {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeStart {
			return &f.Nodes[i]
		}
	}
	return nil
}

// Node returns the node with the given ID, or nil
func (f *UserFlow) Node(id NodeID) *FlowNode {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// OutEdges returns the node's out-edges in declaration order
func (f *UserFlow) OutEdges(id NodeID) []FlowEdge {
	var res []FlowEdge
	for _, e := range f.Edges {
		if e.Source == id {
			res = append(res, e)
		}
	}
	return res
}

// Apply overlays the patch onto the flow, bumping UpdatedAt
func (f *UserFlow) Apply(p *FlowPatch) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Nodes != nil {
		f.Nodes = p.Nodes
	}
	if p.Edges != nil {
		f.Edges = p.Edges
	}
	if p.InitialVariables != nil {
		f.InitialVariables = p.InitialVariables
	}
	f.UpdatedAt = Now()
}
