package summary

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/session-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// responseWithPercentages builds a well-formed response whose planning and
// backend buckets carry the given percentages and every other bucket is zero.
func responseWithPercentages(planning, backend float64) string {
	payload := map[string]any{
		"summary": map[string]any{
			"billing_api": "Added invoice export.",
		},
		"work_categories": map[string]any{
			"planning": map[string]any{"minutes": 30, "percentage": planning, "description": "scoping"},
			"frontend": map[string]any{"minutes": 0, "percentage": 0, "description": nil},
			"backend":  map[string]any{"minutes": 150, "percentage": backend, "description": "export endpoint"},
			"qa":       map[string]any{"minutes": 0, "percentage": 0, "description": nil},
			"devops":   map[string]any{"minutes": 0, "percentage": 0, "description": nil},
			"research": map[string]any{"minutes": 0, "percentage": 0, "description": nil},
			"other":    map[string]any{"minutes": 0, "percentage": 0, "description": nil},
		},
		"project_todos": map[string]any{
			"billing_api": map[string]any{
				"project_id":   nil,
				"project_name": "billing-api",
				"todos": []any{
					map[string]any{"text": "Paginate export", "category": "backend"},
				},
			},
		},
		"quality_score":             0.7,
		"quality_score_explanation": "Clear prompts.",
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestValidateWellFormedResponse(t *testing.T) {
	v := Validate(responseWithPercentages(20, 80))

	require.True(t, v.Decoded)
	assert.True(t, v.ParseSuccess())
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)

	rec := v.Record
	assert.Equal(t, "Added invoice export.", rec.Summary["billing_api"])
	assert.Len(t, rec.WorkCategories, 7)
	assert.Equal(t, 150, rec.WorkCategories["backend"].Minutes)
	require.NotNil(t, rec.WorkCategories["planning"].Description)
	assert.Equal(t, "scoping", *rec.WorkCategories["planning"].Description)
	assert.Nil(t, rec.WorkCategories["qa"].Description)
	require.Contains(t, rec.ProjectTodos, "billing_api")
	assert.Equal(t, "billing-api", rec.ProjectTodos["billing_api"].ProjectName)
	assert.Nil(t, rec.ProjectTodos["billing_api"].ProjectID)
	assert.Equal(t, []models.TodoItem{{Text: "Paginate export", Category: "backend"}}, rec.ProjectTodos["billing_api"].Todos)
	assert.Equal(t, 0.7, rec.QualityScore)
	assert.Equal(t, "Clear prompts.", rec.QualityScoreExplanation)
}

func TestValidateStripsFence(t *testing.T) {
	raw := "Here is the analysis:\n```json\n" + responseWithPercentages(50, 50) + "\n```\n"

	v := Validate(raw)

	assert.True(t, v.ParseSuccess())
	assert.Equal(t, raw, v.Record.RawText)
}

func TestValidateRecoversFromProse(t *testing.T) {
	v := Validate("Sure! " + responseWithPercentages(50, 50) + " Let me know if you need more.")

	assert.True(t, v.ParseSuccess())
}

func TestValidateDecodeFailure(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "```json\n{\"summary\": \n```", "null", `["a","b"]`, "# Sorry\nI cannot produce that output."} {
		t.Run(raw, func(t *testing.T) {
			v := Validate(raw)

			assert.False(t, v.Decoded)
			assert.False(t, v.ParseSuccess())
			require.Len(t, v.Errors, 1)
			assert.True(t, strings.HasPrefix(v.Errors[0], "decode"), v.Errors[0])
			assert.Len(t, v.Record.WorkCategories, 7)
			assert.Empty(t, v.Record.Summary)
		})
	}
}

func TestValidateArrayTodosDropped(t *testing.T) {
	raw := `{
		"summary": {"p": "Did things", "q": "More things"},
		"work_categories": {"other": {"minutes": 60, "percentage": 100, "description": null}},
		"project_todos": {
			"p": ["a", "b"],
			"q": {"project_id": "42", "project_name": "Q", "todos": [{"text": "ship it", "category": "devops"}]}
		},
		"quality_score": 0.5,
		"quality_score_explanation": "ok"
	}`

	v := Validate(raw)

	require.True(t, v.Decoded)
	assert.False(t, v.ParseSuccess())
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], `"p"`)
	assert.NotContains(t, v.Record.ProjectTodos, "p")
	require.Contains(t, v.Record.ProjectTodos, "q")
	require.NotNil(t, v.Record.ProjectTodos["q"].ProjectID)
	assert.Equal(t, "42", *v.Record.ProjectTodos["q"].ProjectID)
	assert.Len(t, v.Record.Summary, 2)
	assert.Equal(t, 0.5, v.Record.QualityScore)
}

func TestValidatePercentageSumWarnings(t *testing.T) {
	tests := []struct {
		name     string
		planning float64
		backend  float64
		warn     bool
	}{
		{"exact", 40, 60, false},
		{"within tolerance", 40, 60.8, false},
		{"97 percent", 40, 57, true},
		{"103 percent", 40, 63, true},
		{"60 percent", 20, 40, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(responseWithPercentages(tt.planning, tt.backend))

			assert.True(t, v.ParseSuccess())
			assert.Empty(t, v.Errors)
			if tt.warn {
				require.Len(t, v.Warnings, 1)
				assert.Contains(t, v.Warnings[0], "percentages sum to")
			} else {
				assert.Empty(t, v.Warnings)
			}
		})
	}
}

func TestValidateClampsValues(t *testing.T) {
	raw := `{
		"summary": {"p": "x"},
		"work_categories": {
			"planning": {"minutes": -15, "percentage": 150},
			"backend": {"minutes": 42.6, "percentage": -20}
		},
		"project_todos": {},
		"quality_score": 85,
		"quality_score_explanation": "fine"
	}`

	v := Validate(raw)

	assert.Empty(t, v.Errors)
	assert.Equal(t, 0, v.Record.WorkCategories["planning"].Minutes)
	assert.Equal(t, 100.0, v.Record.WorkCategories["planning"].Percentage)
	assert.Equal(t, 43, v.Record.WorkCategories["backend"].Minutes)
	assert.Equal(t, 0.0, v.Record.WorkCategories["backend"].Percentage)
	assert.Equal(t, 1.0, v.Record.QualityScore)

	v = Validate(`{"summary": {"p": "x"}, "quality_score": -0.3}`)
	assert.Equal(t, 0.0, v.Record.QualityScore)
}

func TestValidateTruncatesLongText(t *testing.T) {
	long := strings.Repeat("ж", 900)
	raw := fmt.Sprintf(`{"summary": {"p": %q}, "work_categories": {}, "project_todos": {}, "quality_score": 0.4, "quality_score_explanation": %q}`, long, long)

	v := Validate(raw)

	assert.Equal(t, MaxSummaryChars, utf8.RuneCountInString(v.Record.Summary["p"]))
	assert.Equal(t, MaxExplanationChars, utf8.RuneCountInString(v.Record.QualityScoreExplanation))
}

func TestValidateFieldErrorsAreIndependent(t *testing.T) {
	raw := `{
		"summary": "Worked on billing.",
		"work_categories": [1, 2],
		"project_todos": {"p": {"todos": [{"text": ""}, {"text": "write docs", "category": "Documentation"}, "loose"]}},
		"quality_score": "high",
		"quality_score_explanation": 7
	}`

	v := Validate(raw)

	require.True(t, v.Decoded)
	assert.False(t, v.ParseSuccess())
	assert.Empty(t, v.Record.Summary)
	assert.Len(t, v.Record.WorkCategories, 7)
	assert.Equal(t, []models.TodoItem{{Text: "write docs", Category: models.CategoryOther}}, v.Record.ProjectTodos["p"].Todos)
	assert.Equal(t, "p", v.Record.ProjectTodos["p"].ProjectName)

	joined := strings.Join(v.Errors, "\n")
	for _, want := range []string{
		"summary: expected object",
		"work_categories: expected object",
		`project_todos["p"].todos[0]: missing text`,
		`project_todos["p"].todos[2]: expected object`,
		"quality_score: expected number",
		"quality_score_explanation: expected string",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestValidateMissingTodosArray(t *testing.T) {
	v := Validate(`{"summary": {"p": "x"}, "project_todos": {"p": {"project_name": "P"}}}`)

	assert.NotContains(t, v.Record.ProjectTodos, "p")
	assert.Contains(t, strings.Join(v.Errors, "\n"), `project_todos["p"].todos: expected array, got missing`)
}

func TestValidateUnknownCategoryWarning(t *testing.T) {
	raw := `{"summary": {"p": "x"}, "work_categories": {"other": {"percentage": 100}, "meetings": {"percentage": 0}},
		"project_todos": {}, "quality_score": 1, "quality_score_explanation": "x"}`

	v := Validate(raw)

	assert.True(t, v.ParseSuccess())
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], `"meetings"`)
	assert.NotContains(t, v.Record.WorkCategories, "meetings")
}

func TestValidateLegacyMarkdown(t *testing.T) {
	raw := "# Daily Summary\n\n" +
		"## Summary\n" +
		"### billing-api\n" +
		"Added invoice export.\n" +
		"Fixed rounding.\n\n" +
		"## TODO\n" +
		"### billing-api\n" +
		"- [ ] Paginate export\n" +
		"- [x] Write changelog\n" +
		"### web\n" +
		"- [ ] Polish table styles\n"

	v := Validate(raw)

	require.True(t, v.Decoded)
	assert.True(t, v.ParseSuccess())
	assert.Equal(t, "Added invoice export. Fixed rounding.", v.Record.Summary["billing_api"])
	assert.Len(t, v.Record.ProjectTodos["billing_api"].Todos, 2)
	assert.Equal(t, models.CategoryOther, v.Record.ProjectTodos["web"].Todos[0].Category)
	assert.Len(t, v.Record.WorkCategories, 7)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "legacy markdown")
}

func TestValidateLegacyMarkdownWithoutSummary(t *testing.T) {
	v := Validate("- [ ] only a checklist\n- [ ] another item")

	assert.True(t, v.Decoded)
	assert.False(t, v.ParseSuccess())
	assert.Len(t, v.Record.ProjectTodos[generalProject].Todos, 2)
}

func TestValidateIgnoresTrailingText(t *testing.T) {
	v := Validate(responseWithPercentages(50, 50) + "\n\nNote: percentages are estimates.")

	require.True(t, v.Decoded)
	assert.True(t, v.ParseSuccess())
	assert.Equal(t, "Added invoice export.", v.Record.Summary["billing_api"])
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "trailing text")
}

func TestValidateRepairsFormatDrift(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		summary string
		note    string
	}{
		{
			name: "trailing commas",
			raw: `{"summary": {"p": "Shipped export",}, "work_categories": {"other": {"minutes": 10, "percentage": 100,},},
				"project_todos": {}, "quality_score": 0.5, "quality_score_explanation": "ok",}`,
			summary: "Shipped export",
			note:    "trailing commas",
		},
		{
			name: "raw control characters",
			raw: "{\"summary\": {\"p\": \"line one\nline two\"}, \"work_categories\": {\"other\": {\"percentage\": 100}}," +
				" \"project_todos\": {}, \"quality_score\": 0.5, \"quality_score_explanation\": \"tab\there\"}",
			summary: "line one\nline two",
			note:    "control characters",
		},
		{
			name: "missing commas between members",
			raw: "{\n\"summary\": {\"p\": \"Shipped export\"}\n\"work_categories\": {\"other\": {\"percentage\": 100}}\n" +
				"\"project_todos\": {}\n\"quality_score\": 0.5\n\"quality_score_explanation\": \"ok\"\n}",
			summary: "Shipped export",
			note:    "missing commas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.raw)

			require.True(t, v.Decoded, v.Errors)
			assert.True(t, v.ParseSuccess(), v.Errors)
			assert.Equal(t, tt.summary, v.Record.Summary["p"])
			assert.Contains(t, strings.Join(v.Warnings, "\n"), tt.note)
		})
	}
}

func TestValidateClosesTruncatedResponse(t *testing.T) {
	head := `{"summary": {"p": "Shipped export"}, "work_categories": {"other": {"minutes": 10, "percentage": 100}}, ` +
		`"project_todos": {"p": {"project_name": "P", "todos": [{"text": "Paginate export", "category": "backend"}, {"text": "Write chan`

	v := Validate(head)

	require.True(t, v.Decoded, v.Errors)
	assert.Equal(t, "Shipped export", v.Record.Summary["p"])
	assert.Equal(t, []models.TodoItem{
		{Text: "Paginate export", Category: "backend"},
		{Text: "Write chan", Category: models.CategoryOther},
	}, v.Record.ProjectTodos["p"].Todos)
	assert.Contains(t, strings.Join(v.Warnings, "\n"), "truncated")
	// The cut-off fields are reported, not invented
	assert.Contains(t, strings.Join(v.Errors, "\n"), "quality_score: expected number, got missing")
}

func TestValidateDropsIncompleteTrailingMember(t *testing.T) {
	v := Validate(`{"summary": {"p": "Shipped export"}, "work_categories": {"other": {"percentage": 100}}, "quality_sc`)

	require.True(t, v.Decoded, v.Errors)
	assert.Equal(t, "Shipped export", v.Record.Summary["p"])
	assert.Equal(t, 100.0, v.Record.WorkCategories["other"].Percentage)
	assert.Contains(t, strings.Join(v.Warnings, "\n"), "incomplete member")
}

func TestValidateRepairLeavesBracesInStringsAlone(t *testing.T) {
	v := Validate(`{"summary": {"p": "Fixed {brace} and [bracket] handling"}, "quality_score": 0.5`)

	require.True(t, v.Decoded, v.Errors)
	assert.Equal(t, "Fixed {brace} and [bracket] handling", v.Record.Summary["p"])
	assert.Equal(t, 0.5, v.Record.QualityScore)
}
