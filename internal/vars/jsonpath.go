package vars

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSONPath resolves a JSONPath expression against data. It
// implements the extraction subset: dotted member access, bracketed
// array indexes, and a single-level wildcard. A plain path yields the
// single match; a wildcard yields the array of matches; unresolvable
// or syntactically invalid paths yield nil
func ExtractJSONPath(data any, path string) any {
	segs, ok := parseJSONPath(path)
	if !ok {
		return nil
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return resolveSegments(gjson.ParseBytes(doc), segs)
}

// parseJSONPath splits "$.a.b[0].c" into its segments; "[*]" and "*"
// become the wildcard segment. Returns false on malformed input
func parseJSONPath(path string) ([]string, bool) {
	if path != "$" && !strings.HasPrefix(path, "$.") {
		return nil, false
	}
	if path == "$" {
		return nil, true
	}

	var segs []string
	for _, raw := range strings.Split(path[2:], ".") {
		if raw == "" {
			return nil, false
		}
		seg := raw
		for {
			open := strings.Index(seg, "[")
			if open < 0 {
				if seg != "" {
					segs = append(segs, seg)
				}
				break
			}
			closing := strings.Index(seg, "]")
			if closing < open {
				return nil, false
			}
			if open > 0 {
				segs = append(segs, seg[:open])
			}
			idx := seg[open+1 : closing]
			if idx == "*" {
				segs = append(segs, "*")
			} else if idx == "" {
				return nil, false
			} else {
				segs = append(segs, idx)
			}
			seg = seg[closing+1:]
		}
	}
	return segs, true
}

func resolveSegments(res gjson.Result, segs []string) any {
	for i, seg := range segs {
		if seg == "*" {
			return resolveWildcard(res, segs[i+1:])
		}
		res = res.Get(escapeSegment(seg))
		if !res.Exists() {
			return nil
		}
	}
	return res.Value()
}

// resolveWildcard fans out over the children of the current value and
// collects the matches for the remaining segments
func resolveWildcard(res gjson.Result, rest []string) any {
	var matches []any
	res.ForEach(func(_, child gjson.Result) bool {
		if v := resolveSegments(child, rest); v != nil {
			matches = append(matches, v)
		}
		return true
	})
	if matches == nil {
		return nil
	}
	return matches
}

// escapeSegment quotes gjson metacharacters in a member name so keys
// are matched literally
func escapeSegment(seg string) string {
	if !strings.ContainsAny(seg, "*?") {
		return seg
	}
	var b strings.Builder
	for _, r := range seg {
		if r == '*' || r == '?' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
