package vars

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/replaykit/replay/pkg/api"
)

var (
	ErrUnknownOperator  = errors.New("unknown operator")
	ErrNotComparable    = errors.New("operands are not comparable numbers")
	ErrUnknownLogic     = errors.New("unknown compound logic")
	ErrNoConditions     = errors.New("compound condition has no branches")
	ErrPatternNotString = errors.New("matches requires a string pattern")
)

// EvaluateCondition resolves both operands and applies the operator.
// Operands that are a single {{ expr }} placeholder are looked up in
// the store; otherwise JSON literals parse to their typed value and
// anything else stays a string. Failures are reported in the result
// with Result false and the error returned alongside
func (s *Store) EvaluateCondition(
	c *api.Condition,
) (*api.ConditionResult, error) {
	left := s.resolveOperand(c.Left)
	res := &api.ConditionResult{LeftValue: left}

	var right any
	if !c.Operator.IsUnary() {
		right = s.resolveOperand(c.Right)
		res.RightValue = right
	}

	ok, err := applyOperator(c.Operator, left, right)
	if err != nil {
		return res, err
	}
	res.Result = ok
	return res, nil
}

// EvaluateCompound folds the branches with and/or logic. All branches
// are evaluated eagerly, not short-circuited, so that an error in any
// branch surfaces; the first error is returned with Result false
func (s *Store) EvaluateCompound(
	cc *api.CompoundCondition,
) (*api.ConditionResult, error) {
	if len(cc.Conditions) == 0 {
		return &api.ConditionResult{}, ErrNoConditions
	}

	var firstErr error
	results := make([]bool, len(cc.Conditions))
	for i := range cc.Conditions {
		r, err := s.EvaluateCondition(&cc.Conditions[i])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = r.Result
	}
	if firstErr != nil {
		return &api.ConditionResult{}, firstErr
	}

	switch cc.Logic {
	case api.LogicAnd:
		for _, r := range results {
			if !r {
				return &api.ConditionResult{}, nil
			}
		}
		return &api.ConditionResult{Result: true}, nil
	case api.LogicOr:
		for _, r := range results {
			if r {
				return &api.ConditionResult{Result: true}, nil
			}
		}
		return &api.ConditionResult{}, nil
	default:
		return &api.ConditionResult{},
			fmt.Errorf("%w: %q", ErrUnknownLogic, cc.Logic)
	}
}

// resolveOperand turns a condition operand into a value: a single
// {{ expr }} placeholder is a store lookup, a JSON literal parses to
// its typed value, and anything else is kept as a string
func (s *Store) resolveOperand(operand string) any {
	if expr, ok := s.IsReference(operand); ok {
		v, _ := s.Get(expr)
		return v
	}

	var parsed any
	if err := json.Unmarshal([]byte(operand), &parsed); err == nil {
		return parsed
	}
	return operand
}

func applyOperator(op api.Operator, left, right any) (bool, error) {
	switch op {
	case api.OpEq:
		return deepEqual(left, right), nil
	case api.OpNe:
		return !deepEqual(left, right), nil
	case api.OpGt, api.OpGte, api.OpLt, api.OpLte:
		return compareNumeric(op, left, right)
	case api.OpContains:
		return strings.Contains(Stringify(left), Stringify(right)), nil
	case api.OpStartsWith:
		return strings.HasPrefix(Stringify(left), Stringify(right)), nil
	case api.OpEndsWith:
		return strings.HasSuffix(Stringify(left), Stringify(right)), nil
	case api.OpMatches:
		return matchPattern(left, right)
	case api.OpExists:
		return left != nil, nil
	case api.OpIsEmpty:
		return isEmpty(left), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

func compareNumeric(op api.Operator, left, right any) (bool, error) {
	l, err := toNumber(left)
	if err != nil {
		return false, err
	}
	r, err := toNumber(right)
	if err != nil {
		return false, err
	}

	switch op {
	case api.OpGt:
		return l > r, nil
	case api.OpGte:
		return l >= r, nil
	case api.OpLt:
		return l < r, nil
	default:
		return l <= r, nil
	}
}

// matchPattern applies the regex-safety gate to the pattern before
// testing; unsafe or invalid patterns never reach the engine
func matchPattern(left, right any) (bool, error) {
	pattern, ok := right.(string)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrPatternNotString, right)
	}

	re, err := CheckPattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(Stringify(left)), nil
}

// deepEqual compares structurally after normalizing both sides to
// canonical JSON shapes, so 1 and 1.0 compare equal
func deepEqual(left, right any) bool {
	return reflect.DeepEqual(normalize(left), normalize(right))
}

func normalize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var res any
	if err := json.Unmarshal(data, &res); err != nil {
		return v
	}
	return res
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotComparable, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotComparable, v)
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case api.Vars:
		return len(t) == 0
	default:
		return false
	}
}
