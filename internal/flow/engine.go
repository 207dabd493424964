// Package flow walks user flow graphs, executing scenario nodes through
// the scenario service and control nodes against a per-run variable
// store
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/internal/scenario"
	"github.com/replaykit/replay/internal/vars"
	"github.com/replaykit/replay/pkg/api"
	"github.com/replaykit/replay/pkg/log"
)

type (
	// ScenarioExecutor is the slice of the scenario service the engine
	// drives scenario nodes through
	ScenarioExecutor interface {
		Execute(
			ctx context.Context, id api.ScenarioID, opts *runner.Overrides,
			initial scenario.Subscriber, runtimeVars api.Vars,
		) (*api.ScenarioExecutionResult, error)
	}

	// Options tunes one flow execution
	Options struct {
		InitialVariables   api.Vars
		Runner             *runner.Overrides
		MaxExecutionTime   time.Duration
		ContinueOnFailure  bool
		OnNodeStatusChange func(api.NodeID, api.Status, *api.NodeResult)
	}

	// Engine executes user flows. A fresh variable store is created per
	// run and destroyed when Execute returns; engines are safe for
	// concurrent use
	Engine struct {
		exec ScenarioExecutor
	}

	walk struct {
		engine   *Engine
		ctx      context.Context
		flow     *api.UserFlow
		opts     *Options
		store    *vars.Store
		visited  map[api.NodeID]struct{}
		res      *api.FlowExecutionResult
		began    time.Time
		failed   bool
		timedOut bool
	}
)

const (
	DefaultMaxExecutionTime = 5 * time.Minute

	// LastAPIResponseVar is the store binding holding the most recent
	// scenario node's final API response body
	LastAPIResponseVar = "lastApiResponse"

	// flowErrorNodeID labels the synthetic node result emitted when the
	// graph cannot be walked at all
	flowErrorNodeID = api.NodeID("flow-error")
)

var (
	ErrDeadlineExceeded = errors.New("flow deadline exceeded")
	ErrNumberCoercion   = errors.New("value is not a number")
	ErrJSONCoercion     = errors.New("value is not valid JSON")
	ErrUnknownVarType   = errors.New("unknown variable type")
)

// NewEngine creates a flow engine delegating scenario nodes to the
// given executor
func NewEngine(exec ScenarioExecutor) *Engine {
	return &Engine{exec: exec}
}

// Execute walks the flow from its start node and returns the aggregated
// result. A flow without a start node fails with a single synthetic
// node result. Node and step counts cover scenario-kind results only
func (e *Engine) Execute(
	ctx context.Context, f *api.UserFlow, opts *Options,
) *api.FlowExecutionResult {
	if opts == nil {
		opts = &Options{}
	}
	if opts.MaxExecutionTime == 0 {
		opts.MaxExecutionTime = DefaultMaxExecutionTime
	}

	res := &api.FlowExecutionResult{
		ID:        api.NewFlowResultID(),
		FlowID:    f.ID,
		Status:    api.StatusPassed,
		StartedAt: api.Now(),
	}

	start := f.StartNode()
	if start == nil {
		res.Status = api.StatusFailed
		res.NodeResults = append(res.NodeResults, api.NodeResult{
			NodeID: flowErrorNodeID,
			Status: api.StatusFailed,
			Error: &api.StepError{
				Message: api.ErrFlowNoStartNode.Error(),
			},
		})
		res.Recount()
		res.EndedAt = api.Now()
		return res
	}

	w := &walk{
		engine:  e,
		ctx:     ctx,
		flow:    f,
		opts:    opts,
		store:   vars.NewStore(f.InitialVariables.Merge(opts.InitialVariables)),
		visited: map[api.NodeID]struct{}{},
		res:     res,
		began:   time.Now(),
	}
	w.visit(start)

	if w.failed {
		res.Status = api.StatusFailed
	}
	res.Recount()
	res.EndedAt = api.Now()

	slog.Info("Flow execution finished",
		log.FlowID(f.ID), log.Status(res.Status),
		slog.Int("totalNodes", res.TotalNodes))
	return res
}

func (w *walk) visit(n *api.FlowNode) {
	if time.Since(w.began) > w.opts.MaxExecutionTime {
		if !w.timedOut {
			w.timedOut = true
			w.failed = true
			slog.Warn("Flow execution aborted",
				log.FlowID(w.flow.ID), log.Error(ErrDeadlineExceeded))
		}
		return
	}
	if _, seen := w.visited[n.ID]; seen {
		slog.Debug("Cycle detected, node already visited",
			log.FlowID(w.flow.ID), log.NodeID(n.ID))
		return
	}
	w.visited[n.ID] = struct{}{}

	nr := w.dispatch(n)
	if nr != nil {
		w.res.NodeResults = append(w.res.NodeResults, *nr)
		last := &w.res.NodeResults[len(w.res.NodeResults)-1]
		if w.opts.OnNodeStatusChange != nil {
			w.opts.OnNodeStatusChange(n.ID, last.Status, last)
		}
		if last.Status == api.StatusFailed {
			if n.Type == api.NodeScenario {
				w.failed = true
			}
			if !w.opts.ContinueOnFailure {
				w.failed = true
				return
			}
		}
	}

	for _, edge := range w.successors(n, nr) {
		if next := w.flow.Node(edge.Target); next != nil {
			w.visit(next)
		}
	}
}

// successors selects the out-edges to follow. Condition nodes follow
// only the edge whose handle matches the boolean outcome; a missing
// handle ends that branch without error
func (w *walk) successors(
	n *api.FlowNode, nr *api.NodeResult,
) []api.FlowEdge {
	out := w.flow.OutEdges(n.ID)
	if n.Type != api.NodeCondition {
		return out
	}

	handle := api.HandleFalse
	if nr != nil && nr.ConditionResult != nil && nr.ConditionResult.Result {
		handle = api.HandleTrue
	}
	for _, e := range out {
		if e.SourceHandle == handle {
			return []api.FlowEdge{e}
		}
	}
	return nil
}

func (w *walk) dispatch(n *api.FlowNode) *api.NodeResult {
	switch n.Type {
	case api.NodeStart, api.NodeEnd:
		return nil
	case api.NodeScenario:
		return w.runScenario(n)
	case api.NodeCondition:
		return w.runCondition(n)
	case api.NodeSetVariable:
		return w.runSetVariable(n)
	case api.NodeExtractVariable:
		return w.runExtractVariable(n)
	default:
		return &api.NodeResult{
			NodeID:   n.ID,
			NodeType: n.Type,
			Status:   api.StatusFailed,
			Error: &api.StepError{
				Message: fmt.Sprintf("%s: %q",
					api.ErrInvalidNodeType, n.Type),
			},
		}
	}
}

func (w *walk) runScenario(n *api.FlowNode) *api.NodeResult {
	began := time.Now()
	nr := &api.NodeResult{NodeID: n.ID, NodeType: api.NodeScenario}

	res, err := w.engine.exec.Execute(
		w.ctx, n.ScenarioID, w.opts.Runner, nil,
		driverSafeVars(w.store.All()),
	)
	nr.Duration = time.Since(began).Milliseconds()

	if errors.Is(err, repo.ErrScenarioNotFound) {
		nr.Status = api.StatusSkipped
		nr.Error = &api.StepError{
			Message: fmt.Sprintf("Scenario %s not found", n.ScenarioID),
		}
		return nr
	}
	if err != nil {
		nr.Status = api.StatusFailed
		nr.Error = &api.StepError{Message: err.Error()}
		return nr
	}

	nr.ScenarioResult = res
	if body := res.LastAPIResponse(); body != nil {
		w.store.Set(LastAPIResponseVar, body)
	} else {
		w.store.Delete(LastAPIResponseVar)
	}

	if res.Summary.Success {
		nr.Status = api.StatusPassed
	} else {
		nr.Status = api.StatusFailed
	}
	return nr
}

func (w *walk) runCondition(n *api.FlowNode) *api.NodeResult {
	began := time.Now()
	nr := &api.NodeResult{NodeID: n.ID, NodeType: api.NodeCondition}

	cr, err := w.store.EvaluateCondition(n.Condition)
	nr.Duration = time.Since(began).Milliseconds()
	nr.ConditionResult = cr

	if err != nil {
		nr.Status = api.StatusFailed
		nr.Error = &api.StepError{Message: err.Error()}
		return nr
	}
	nr.Status = api.StatusPassed
	return nr
}

// runSetVariable interpolates and coerces each assignment in order. On
// a coercion failure the node fails but the bindings made so far stay
// in place
func (w *walk) runSetVariable(n *api.FlowNode) *api.NodeResult {
	began := time.Now()
	nr := &api.NodeResult{
		NodeID:         n.ID,
		NodeType:       api.NodeSetVariable,
		Status:         api.StatusPassed,
		VariableResult: &api.VariableResult{Variables: api.Vars{}},
	}

	for _, a := range n.Assignments {
		raw, err := w.store.Interpolate(a.Value)
		if err == nil {
			var v any
			v, err = coerce(a.Type, raw)
			if err == nil {
				w.store.Set(a.Name, v)
				nr.VariableResult.Variables[a.Name] = v
				continue
			}
		}
		nr.Status = api.StatusFailed
		nr.Error = &api.StepError{
			Message: fmt.Sprintf("assignment %q: %s", a.Name, err),
		}
		break
	}
	nr.Duration = time.Since(began).Milliseconds()
	return nr
}

// runExtractVariable resolves each extraction. Sources that need a
// browser context are unsupported here and fall back to the default
// value without failing
func (w *walk) runExtractVariable(n *api.FlowNode) *api.NodeResult {
	began := time.Now()
	nr := &api.NodeResult{
		NodeID:         n.ID,
		NodeType:       api.NodeExtractVariable,
		Status:         api.StatusPassed,
		VariableResult: &api.VariableResult{Variables: api.Vars{}},
	}

	for _, ex := range n.Extractions {
		var v any
		if ex.Source == api.SourceLastAPIResponse {
			body, _ := w.store.Get(LastAPIResponseVar)
			if ex.JSONPath != "" {
				v = vars.ExtractJSONPath(body, ex.JSONPath)
			} else {
				v = body
			}
		}
		if v == nil {
			v = ex.DefaultValue
		}
		w.store.Set(ex.VariableName, v)
		nr.VariableResult.Variables[ex.VariableName] = v
	}
	nr.Duration = time.Since(began).Milliseconds()
	return nr
}

// coerce applies the declared variable type to an interpolated value
func coerce(t api.VariableType, raw string) (any, error) {
	switch t {
	case api.VarString, "":
		return raw, nil
	case api.VarNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrNumberCoercion, raw)
		}
		return f, nil
	case api.VarBoolean:
		// only the literals "true" and "1" are truthy
		return raw == "true" || raw == "1", nil
	case api.VarJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrJSONCoercion, raw)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVarType, t)
	}
}

// driverSafeVars reduces bindings to primitives a driver can accept:
// scalars pass through, nils drop, composites become canonical JSON
func driverSafeVars(all api.Vars) api.Vars {
	res := make(api.Vars, len(all))
	for k, v := range all {
		switch t := v.(type) {
		case nil:
			continue
		case bool, float64, string, int, int64:
			res[k] = t
		default:
			data, err := json.Marshal(t)
			if err != nil {
				continue
			}
			res[k] = string(data)
		}
	}
	return res
}
