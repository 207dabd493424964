package selector

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/replaykit/replay/pkg/api"
)

type (
	// Candidate is one scored locator produced by a single strategy
	Candidate struct {
		Selector   api.Selector `json:"selector"`
		Score      int          `json:"score"`
		IsUnique   bool         `json:"isUnique"`
		IsReadable bool         `json:"isReadable"`
	}

	// Ranked is the prioritizer output: the best candidate plus a
	// capped list of fallbacks in rank order
	Ranked struct {
		Primary   Candidate   `json:"primary"`
		Fallbacks []Candidate `json:"fallbacks"`
	}

	// Options tunes ranking. The zero value means up to
	// DefaultMaxFallbacks fallbacks and no uniqueness filter.
	// AttributeScoring switches to the attribute-first variant: one
	// candidate per single attribute, scored with the attribute table
	// and ranked by score alone
	Options struct {
		MaxFallbacks     int
		RequireUnique    bool
		AttributeScoring bool
	}
)

const (
	DefaultMaxFallbacks = 2

	MinScore = 0
	MaxScore = 100
)

// base score per strategy
const (
	scoreTestID = 95
	scoreRole   = 80
	scoreCSS    = 30
	scoreXPath  = 20
)

// base score per attribute for the attribute-first variant
const (
	scoreAriaLabel = 85
	scoreText      = 70
	scoreID        = 65
	scoreName      = 60
	scoreClass     = 40
)

var ErrNoCandidates = errors.New("no selector candidates for element")

// generated class names carry long hex or hashed suffixes
var generatedToken = regexp.MustCompile(`[0-9a-f]{6,}|__|--[a-z0-9]{4,}$`)

// Prioritize scores every strategy the element supports and ranks the
// results. Strategy priority dominates; score breaks ties within a
// strategy and the sort is stable beyond that
func Prioritize(el *api.ElementInfo, opts Options) (*Ranked, error) {
	cands := Candidates(el)
	if opts.AttributeScoring {
		cands = AttributeCandidates(el)
	}
	if opts.RequireUnique {
		cands = filterUnique(cands)
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: <%s>", ErrNoCandidates, el.Tag)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		l, r := cands[i], cands[j]
		if l.Selector.Strategy != r.Selector.Strategy {
			return l.Selector.Strategy.Rank() < r.Selector.Strategy.Rank()
		}
		return l.Score > r.Score
	})

	max := opts.MaxFallbacks
	if max == 0 {
		max = DefaultMaxFallbacks
	}
	fallbacks := cands[1:]
	if len(fallbacks) > max {
		fallbacks = fallbacks[:max]
	}
	return &Ranked{Primary: cands[0], Fallbacks: fallbacks}, nil
}

// Best returns just the top-ranked selector, or nil when the element
// offers nothing to select on
func Best(el *api.ElementInfo) *api.Selector {
	r, err := Prioritize(el, Options{})
	if err != nil {
		return nil
	}
	res := r.Primary.Selector
	return &res
}

// Candidates emits at most one scored candidate per strategy
func Candidates(el *api.ElementInfo) []Candidate {
	var res []Candidate
	if c, ok := testIDCandidate(el); ok {
		res = append(res, c)
	}
	if c, ok := roleCandidate(el); ok {
		res = append(res, c)
	}
	if c, ok := cssCandidate(el); ok {
		res = append(res, c)
	}
	if c, ok := xpathCandidate(el); ok {
		res = append(res, c)
	}
	return res
}

// AttributeCandidates emits one candidate per single attribute the
// element carries, scored with the attribute table. All candidates are
// css-strategy locators, so ranking falls through to score order
func AttributeCandidates(el *api.ElementInfo) []Candidate {
	var res []Candidate
	add := func(value string, base int, unique, readable bool) {
		res = append(res, makeCandidate(api.Selector{
			Strategy: api.StrategyCSS,
			Value:    value,
		}, base, unique, readable))
	}

	if el.AriaLabel != "" {
		add(fmt.Sprintf("%s[aria-label=%q]", el.Tag, el.AriaLabel),
			scoreAriaLabel, el.IsUnique, true)
	}
	if text := strings.TrimSpace(el.Text); text != "" {
		add(fmt.Sprintf("%s:has-text(%q)", el.Tag, text),
			scoreText, el.IsUnique, true)
	}
	if el.ElementID != "" {
		add("#"+el.ElementID,
			scoreID, true, isReadableToken(el.ElementID))
	}
	if el.InputName != "" {
		add(fmt.Sprintf("%s[name=%q]", el.Tag, el.InputName),
			scoreName, el.IsUnique, true)
	}
	if len(el.Classes) > 0 {
		add(el.Tag+"."+strings.Join(el.Classes, "."),
			scoreClass, el.IsUnique, readableClasses(el.Classes))
	}
	return res
}

func testIDCandidate(el *api.ElementInfo) (Candidate, bool) {
	if el.TestID == "" {
		return Candidate{}, false
	}
	return makeCandidate(api.Selector{
		Strategy: api.StrategyTestID,
		Value:    el.TestID,
	}, scoreTestID, el.IsUnique, true), true
}

func roleCandidate(el *api.ElementInfo) (Candidate, bool) {
	if el.Role == "" {
		return Candidate{}, false
	}
	name := el.AriaLabel
	if name == "" {
		name = strings.TrimSpace(el.Text)
	}
	return makeCandidate(api.Selector{
		Strategy: api.StrategyRole,
		Role:     el.Role,
		Name:     name,
	}, scoreRole, el.IsUnique, name != ""), true
}

// cssCandidate builds the most specific css locator available,
// preferring id over input name over classes over the recorded path
func cssCandidate(el *api.ElementInfo) (Candidate, bool) {
	switch {
	case el.ElementID != "":
		return makeCandidate(api.Selector{
			Strategy: api.StrategyCSS,
			Value:    "#" + el.ElementID,
		}, scoreCSS, true, isReadableToken(el.ElementID)), true
	case el.InputName != "":
		value := fmt.Sprintf("%s[name=%q]", el.Tag, el.InputName)
		return makeCandidate(api.Selector{
			Strategy: api.StrategyCSS,
			Value:    value,
		}, scoreCSS, el.IsUnique, true), true
	case len(el.Classes) > 0:
		value := el.Tag + "." + strings.Join(el.Classes, ".")
		return makeCandidate(api.Selector{
			Strategy: api.StrategyCSS,
			Value:    value,
		}, scoreCSS, el.IsUnique, readableClasses(el.Classes)), true
	case el.CSSPath != "":
		return makeCandidate(api.Selector{
			Strategy: api.StrategyCSS,
			Value:    el.CSSPath,
		}, scoreCSS, true, false), true
	}
	return Candidate{}, false
}

func xpathCandidate(el *api.ElementInfo) (Candidate, bool) {
	if el.XPath == "" {
		return Candidate{}, false
	}
	return makeCandidate(api.Selector{
		Strategy: api.StrategyXPath,
		Value:    el.XPath,
	}, scoreXPath, true, false), true
}

func makeCandidate(
	sel api.Selector, base int, unique, readable bool,
) Candidate {
	return Candidate{
		Selector:   sel,
		Score:      ScoreSelector(sel.Value, base, unique, readable),
		IsUnique:   unique,
		IsReadable: readable,
	}
}

// ScoreSelector applies the stability bonuses and penalties to a
// strategy's base score and clamps the result
func ScoreSelector(value string, base int, unique, readable bool) int {
	score := base
	if unique {
		score += 5
	}
	if readable {
		score += 5
	}
	if strings.Contains(value, ":nth-child") {
		score -= 20
	}
	if strings.Contains(value, ":nth-of-type") {
		score -= 15
	}
	depth := strings.Count(value, ">") + 1
	if depth > 3 {
		score -= 15
	}
	if depth > 5 {
		score -= 10
	}
	if classTokens(value) > 2 {
		score -= 10
	}
	return clamp(score)
}

// classTokens counts class selectors in the expression. Dots inside
// attribute brackets or quoted strings are data, not class tokens
func classTokens(value string) int {
	n := 0
	depth := 0
	var quote rune
	for _, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			if depth > 0 {
				depth--
			}
		case r == '.' && depth == 0:
			n++
		}
	}
	return n
}

func clamp(score int) int {
	return min(MaxScore, max(MinScore, score))
}

func filterUnique(cands []Candidate) []Candidate {
	res := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.IsUnique {
			res = append(res, c)
		}
	}
	return res
}

func isReadableToken(tok string) bool {
	return !generatedToken.MatchString(tok)
}

func readableClasses(classes []string) bool {
	if len(classes) > 2 {
		return false
	}
	for _, c := range classes {
		if !isReadableToken(c) {
			return false
		}
	}
	return true
}
