package api

import (
	"errors"
	"fmt"
)

type (
	// SelectorStrategy names the locator strategy used by a selector
	SelectorStrategy string

	// Selector is a strategy-tagged locator for a DOM element. Value
	// carries the locator expression for testId, css, and xpath
	// strategies; role selectors use the Role and optional Name fields
	Selector struct {
		Strategy SelectorStrategy `json:"strategy"`
		Value    string           `json:"value,omitempty"`
		Role     string           `json:"role,omitempty"`
		Name     string           `json:"name,omitempty"`
	}
)

const (
	StrategyTestID SelectorStrategy = "testId"
	StrategyRole   SelectorStrategy = "role"
	StrategyCSS    SelectorStrategy = "css"
	StrategyXPath  SelectorStrategy = "xpath"
)

var (
	ErrSelectorValueEmpty    = errors.New("selector value empty")
	ErrSelectorRoleEmpty     = errors.New("selector role empty")
	ErrInvalidSelectorMethod = errors.New("invalid selector strategy")
)

// strategyRank orders strategies by declared priority, most stable first
var strategyRank = map[SelectorStrategy]int{
	StrategyTestID: 0,
	StrategyRole:   1,
	StrategyCSS:    2,
	StrategyXPath:  3,
}

// Rank returns the declared priority of the strategy; testId ranks
// highest. Unknown strategies sort last
func (s SelectorStrategy) Rank() int {
	if r, ok := strategyRank[s]; ok {
		return r
	}
	return len(strategyRank)
}

// Validate checks the selector for structural correctness
func (s *Selector) Validate() error {
	switch s.Strategy {
	case StrategyTestID, StrategyCSS, StrategyXPath:
		if s.Value == "" {
			return fmt.Errorf("%w: %s", ErrSelectorValueEmpty, s.Strategy)
		}
	case StrategyRole:
		if s.Role == "" {
			return ErrSelectorRoleEmpty
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSelectorMethod, s.Strategy)
	}
	return nil
}

// String renders the selector in a driver-addressable form
func (s *Selector) String() string {
	switch s.Strategy {
	case StrategyTestID:
		return fmt.Sprintf("[data-testid=%q]", s.Value)
	case StrategyRole:
		if s.Name != "" {
			return fmt.Sprintf("role=%s[name=%q]", s.Role, s.Name)
		}
		return "role=" + s.Role
	default:
		return s.Value
	}
}
