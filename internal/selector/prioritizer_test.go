package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replay/internal/selector"
	"github.com/replaykit/replay/pkg/api"
)

func richElement() *api.ElementInfo {
	return &api.ElementInfo{
		Tag:       "button",
		TestID:    "submit-btn",
		Role:      "button",
		AriaLabel: "Submit",
		ElementID: "submit",
		Classes:   []string{"btn", "primary"},
		CSSPath:   "form > div > button",
		XPath:     "/html/body/form/div/button",
		IsUnique:  true,
	}
}

func TestPrioritizePrefersTestID(t *testing.T) {
	r, err := selector.Prioritize(richElement(), selector.Options{})
	require.NoError(t, err)

	assert.Equal(t, api.StrategyTestID, r.Primary.Selector.Strategy)
	assert.Equal(t, "submit-btn", r.Primary.Selector.Value)
	assert.Equal(t, 100, r.Primary.Score)
}

func TestPrioritizeFallbackOrder(t *testing.T) {
	r, err := selector.Prioritize(richElement(), selector.Options{})
	require.NoError(t, err)

	require.Len(t, r.Fallbacks, selector.DefaultMaxFallbacks)
	assert.Equal(t, api.StrategyRole, r.Fallbacks[0].Selector.Strategy)
	assert.Equal(t, api.StrategyCSS, r.Fallbacks[1].Selector.Strategy)
}

func TestPrioritizeMaxFallbacks(t *testing.T) {
	r, err := selector.Prioritize(richElement(), selector.Options{
		MaxFallbacks: 3,
	})
	require.NoError(t, err)

	require.Len(t, r.Fallbacks, 3)
	assert.Equal(t, api.StrategyXPath, r.Fallbacks[2].Selector.Strategy)
}

func TestPrioritizeRequireUnique(t *testing.T) {
	el := richElement()
	el.IsUnique = false
	el.ElementID = ""
	el.InputName = ""
	el.Classes = nil

	r, err := selector.Prioritize(el, selector.Options{RequireUnique: true})
	require.NoError(t, err)

	// only the path-derived locators count as unique here
	assert.Equal(t, api.StrategyCSS, r.Primary.Selector.Strategy)
	assert.Equal(t, "form > div > button", r.Primary.Selector.Value)
}

func TestPrioritizeNoCandidates(t *testing.T) {
	_, err := selector.Prioritize(&api.ElementInfo{Tag: "div"}, selector.Options{})
	assert.ErrorIs(t, err, selector.ErrNoCandidates)
}

func TestBest(t *testing.T) {
	sel := selector.Best(richElement())
	require.NotNil(t, sel)
	assert.Equal(t, api.StrategyTestID, sel.Strategy)

	assert.Nil(t, selector.Best(&api.ElementInfo{Tag: "span"}))
}

func TestRoleCandidateNameFromText(t *testing.T) {
	el := &api.ElementInfo{
		Tag:      "a",
		Role:     "link",
		Text:     "  Read more  ",
		IsUnique: true,
	}
	cands := selector.Candidates(el)
	require.Len(t, cands, 1)
	assert.Equal(t, "Read more", cands[0].Selector.Name)
}

func TestCSSCandidatePrefersID(t *testing.T) {
	el := &api.ElementInfo{
		Tag:       "input",
		ElementID: "email",
		InputName: "email-field",
		Classes:   []string{"form-control"},
	}
	cands := selector.Candidates(el)
	require.Len(t, cands, 1)
	assert.Equal(t, "#email", cands[0].Selector.Value)
	assert.True(t, cands[0].IsUnique)
}

func TestCSSCandidateInputName(t *testing.T) {
	el := &api.ElementInfo{Tag: "input", InputName: "q", IsUnique: true}
	cands := selector.Candidates(el)
	require.Len(t, cands, 1)
	assert.Equal(t, `input[name="q"]`, cands[0].Selector.Value)
}

func TestAttributeScoringOrder(t *testing.T) {
	el := &api.ElementInfo{
		Tag:       "button",
		AriaLabel: "Submit",
		Text:      "Submit order",
		ElementID: "submit",
		InputName: "submit-btn",
		Classes:   []string{"btn", "primary"},
		IsUnique:  true,
	}
	r, err := selector.Prioritize(el, selector.Options{
		AttributeScoring: true,
		MaxFallbacks:     4,
	})
	require.NoError(t, err)

	assert.Equal(t, api.StrategyCSS, r.Primary.Selector.Strategy)
	assert.Equal(t, `button[aria-label="Submit"]`, r.Primary.Selector.Value)
	assert.Equal(t, 95, r.Primary.Score)

	require.Len(t, r.Fallbacks, 4)
	values := make([]string, len(r.Fallbacks))
	for i, c := range r.Fallbacks {
		values[i] = c.Selector.Value
	}
	assert.Equal(t, []string{
		`button:has-text("Submit order")`,
		"#submit",
		`button[name="submit-btn"]`,
		"button.btn.primary",
	}, values)
}

func TestAttributeCandidateScores(t *testing.T) {
	tests := []struct {
		el    *api.ElementInfo
		name  string
		value string
		score int
	}{
		{&api.ElementInfo{Tag: "button", AriaLabel: "Go"},
			"ariaLabel", `button[aria-label="Go"]`, 90},
		{&api.ElementInfo{Tag: "a", Text: " Read more "},
			"text", `a:has-text("Read more")`, 75},
		{&api.ElementInfo{Tag: "input", ElementID: "email"},
			"id", "#email", 75},
		{&api.ElementInfo{Tag: "input", InputName: "q"},
			"name", `input[name="q"]`, 65},
		{&api.ElementInfo{Tag: "div", Classes: []string{"card"}},
			"class", "div.card", 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := selector.AttributeCandidates(tt.el)
			require.Len(t, cands, 1)
			assert.Equal(t, tt.value, cands[0].Selector.Value)
			assert.Equal(t, tt.score, cands[0].Score)
		})
	}
}

func TestScoreSelectorPenalties(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		base     int
		unique   bool
		readable bool
		want     int
	}{
		{"bonuses", "#submit", 30, true, true, 40},
		{"nth-child", "li:nth-child(3)", 30, false, false, 10},
		{"nth-of-type", "li:nth-of-type(2)", 30, false, false, 15},
		{"deep", "a > b > c > d", 30, false, false, 15},
		{"very deep", "a > b > c > d > e > f", 30, false, false, 5},
		{"many classes", "div.a.b.c", 30, false, false, 20},
		{"dots in attribute value",
			`div[data-x="a.b.c"]`, 30, false, false, 30},
		{"classes beside attribute",
			`div.a.b.c[data-x="d.e"]`, 30, false, false, 20},
		{"clamp low", "a > b > c > d:nth-child(1)", 20, false, false, 0},
		{"clamp high", "x", 95, true, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selector.ScoreSelector(
				tt.value, tt.base, tt.unique, tt.readable,
			)
			assert.Equal(t, tt.want, got)
		})
	}
}
