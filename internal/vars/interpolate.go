package vars

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingVariable is returned during interpolation when a
// referenced variable is unbound and ThrowOnMissing is set
var ErrMissingVariable = errors.New("variable not found")

// Interpolate replaces {{ key }} placeholders in the template with the
// store's bindings. Whitespace inside the delimiters is tolerated.
// Missing keys leave the placeholder intact unless ThrowOnMissing was
// configured. Objects and arrays render as canonical JSON
func (s *Store) Interpolate(template string) (string, error) {
	var b strings.Builder
	rest := template

	for {
		start := strings.Index(rest, s.opts.StartDelim)
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], s.opts.EndDelim)
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end += start

		b.WriteString(rest[:start])
		key := strings.TrimSpace(
			rest[start+len(s.opts.StartDelim) : end])

		v, ok := s.Get(key)
		if !ok {
			if s.opts.ThrowOnMissing {
				return "", fmt.Errorf("%w: %s", ErrMissingVariable, key)
			}
			b.WriteString(rest[start : end+len(s.opts.EndDelim)])
		} else {
			b.WriteString(Stringify(v))
		}
		rest = rest[end+len(s.opts.EndDelim):]
	}
}

// Stringify renders a variable value for substitution: scalars as
// their natural text, composites as canonical JSON, nil as empty
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

// IsReference reports whether the string is exactly one {{ expr }}
// placeholder, and returns the inner expression
func (s *Store) IsReference(str string) (string, bool) {
	trimmed := strings.TrimSpace(str)
	if !strings.HasPrefix(trimmed, s.opts.StartDelim) ||
		!strings.HasSuffix(trimmed, s.opts.EndDelim) {
		return "", false
	}
	inner := trimmed[len(s.opts.StartDelim) : len(trimmed)-len(s.opts.EndDelim)]
	if strings.Contains(inner, s.opts.StartDelim) ||
		strings.Contains(inner, s.opts.EndDelim) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}
