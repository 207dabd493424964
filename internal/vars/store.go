// Package vars implements the per-flow variable context: typed,
// path-addressable bindings with template interpolation, JSONPath
// extraction, and side-effect-free condition evaluation.
package vars

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// Store holds the variable bindings for a single flow run. A store
	// is scoped to one run and needs no internal locking
	Store struct {
		values map[string]any
		opts   Options
	}

	// Options configures interpolation behavior
	Options struct {
		StartDelim     string
		EndDelim       string
		ThrowOnMissing bool
	}
)

// NewStore creates a store seeded with the given initial bindings
func NewStore(initial api.Vars) *Store {
	return NewStoreWith(initial, Options{})
}

// NewStoreWith creates a store with explicit interpolation options
func NewStoreWith(initial api.Vars, opts Options) *Store {
	if opts.StartDelim == "" {
		opts.StartDelim = "{{"
	}
	if opts.EndDelim == "" {
		opts.EndDelim = "}}"
	}
	s := &Store{
		values: map[string]any{},
		opts:   opts,
	}
	for k, v := range initial {
		s.values[k] = deepCopy(v)
	}
	return s
}

// Set binds a value at the given path, creating intermediate maps as
// needed. Numeric segments index arrays when the existing value at
// that position is an array; otherwise they are plain string keys
func (s *Store) Set(path string, value any) {
	segs := strings.Split(path, ".")
	if len(segs) == 1 {
		s.values[path] = value
		return
	}

	cur := any(s.values)
	for _, seg := range segs[:len(segs)-1] {
		next := childOf(cur, seg)
		switch next.(type) {
		case map[string]any, []any:
		default:
			next = map[string]any{}
			setChild(cur, seg, next)
		}
		cur = next
	}
	setChild(cur, segs[len(segs)-1], value)
}

// Get resolves a path to its bound value. Paths starting with "$."
// are dispatched to the JSONPath extractor over the store root
func (s *Store) Get(path string) (any, bool) {
	if strings.HasPrefix(path, "$.") {
		v := ExtractJSONPath(map[string]any(s.values), path)
		return v, v != nil
	}

	cur := any(s.values)
	for _, seg := range strings.Split(path, ".") {
		next := childOf(cur, seg)
		if next == nil {
			if !hasChild(cur, seg) {
				return nil, false
			}
		}
		cur = next
	}
	return cur, true
}

// Has reports whether the path resolves to a binding
func (s *Store) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Delete removes a top-level binding
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// All returns the current top-level bindings. The returned map shares
// structure with the store; callers must not mutate it
func (s *Store) All() api.Vars {
	return api.Vars(s.values)
}

// Snapshot produces a deep copy of all bindings, independent of later
// mutations
func (s *Store) Snapshot() api.Vars {
	res := make(api.Vars, len(s.values))
	for k, v := range s.values {
		res[k] = deepCopy(v)
	}
	return res
}

// Restore clears the store and rebinds the snapshot's values
func (s *Store) Restore(snap api.Vars) {
	s.values = make(map[string]any, len(snap))
	for k, v := range snap {
		s.values[k] = deepCopy(v)
	}
}

// ExtractAndStore resolves path against data and binds the result (or
// the default, or nil) under name
func (s *Store) ExtractAndStore(
	name string, data any, path string, def any,
) {
	var v any
	if path == "" {
		v = data
	} else {
		v = ExtractJSONPath(data, path)
	}
	if v == nil {
		v = def
	}
	s.Set(name, v)
}

// childOf resolves one path segment against a container value
func childOf(cur any, seg string) any {
	switch c := cur.(type) {
	case map[string]any:
		return c[seg]
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil
		}
		return c[idx]
	default:
		return nil
	}
}

// hasChild reports whether the segment exists in the container, even
// when bound to nil
func hasChild(cur any, seg string) bool {
	switch c := cur.(type) {
	case map[string]any:
		_, ok := c[seg]
		return ok
	case []any:
		idx, err := strconv.Atoi(seg)
		return err == nil && idx >= 0 && idx < len(c)
	default:
		return false
	}
}

// setChild writes a value for the segment into the container
func setChild(cur any, seg string, value any) {
	switch c := cur.(type) {
	case map[string]any:
		c[seg] = value
	case []any:
		idx, err := strconv.Atoi(seg)
		if err == nil && idx >= 0 && idx < len(c) {
			c[idx] = value
		}
	}
}

// deepCopy copies plain data through a JSON round-trip. Values that
// cannot marshal are returned as-is; the store only admits plain data
func deepCopy(v any) any {
	switch v.(type) {
	case nil, bool, string,
		int, int64, float64:
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
