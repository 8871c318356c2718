package summary

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/session-insights/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildPromptContract(t *testing.T) {
	prompt := BuildPrompt("2026-10-17", []models.ProjectText{
		{ProjectName: "Billing API", UserText: "add export\n\nfix rounding"},
	})

	assert.Contains(t, prompt, "2026-10-17")
	for _, name := range models.CategoryNames {
		assert.Contains(t, prompt, `"`+name+`"`)
	}
	for _, field := range []string{"summary", "work_categories", "project_todos", "quality_score", "quality_score_explanation"} {
		assert.Contains(t, prompt, `"`+field+`"`)
	}
	assert.Contains(t, prompt, "=== Project: Billing API ===")
	assert.Contains(t, prompt, "Project key: billing_api")
	assert.Contains(t, prompt, "Prompt count: 2")
	assert.Contains(t, prompt, "Character count: 24")
	assert.NotContains(t, prompt, TruncationMarker)
}

func TestBuildPromptTruncatesDeterministically(t *testing.T) {
	texts := []models.ProjectText{
		{ProjectName: "big", UserText: strings.Repeat("é", MaxPromptChars)},
		{ProjectName: "after", UserText: "never reached"},
	}

	first := BuildPrompt("2026-10-17", texts)
	second := BuildPrompt("2026-10-17", texts)

	assert.Equal(t, first, second)
	assert.Equal(t, MaxPromptChars, utf8.RuneCountInString(first))
	assert.True(t, utf8.ValidString(first))
	assert.True(t, strings.HasSuffix(first, TruncationMarker))
	assert.NotContains(t, first, "never reached")
}

func TestBuildPromptNeverExceedsLimit(t *testing.T) {
	empty := BuildPrompt("2026-10-17", []models.ProjectText{{ProjectName: "p", UserText: ""}})
	room := MaxPromptChars - utf8.RuneCountInString(empty)

	prompt := BuildPrompt("2026-10-17", []models.ProjectText{{ProjectName: "p", UserText: strings.Repeat("a", room)}})

	// The character count line grows with the text, so allow for its digits
	assert.LessOrEqual(t, utf8.RuneCountInString(prompt), MaxPromptChars)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"billing-api":        "billing_api",
		"  My Project  ":     "my_project",
		"acme/web--frontend": "acme_web_frontend",
		"Ünïcode App":        "ünïcode_app",
		"!!!":                UnknownProject,
		"":                   UnknownProject,
	}

	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestProjectSlugsAreUnique(t *testing.T) {
	slugs := ProjectSlugs([]models.ProjectText{
		{ProjectName: "web app"},
		{ProjectName: "web-app"},
		{ProjectName: "Web_App"},
		{ProjectName: "api"},
	})

	assert.Equal(t, []string{"web_app", "web_app_2", "web_app_3", "api"}, slugs)
}

func TestProjectSlugsSkipTakenSuffixes(t *testing.T) {
	slugs := ProjectSlugs([]models.ProjectText{
		{ProjectName: "a"},
		{ProjectName: "a 2"},
		{ProjectName: "A"},
		{ProjectName: "a-2"},
	})

	assert.Equal(t, []string{"a", "a_2", "a_3", "a_2_2"}, slugs)
}

func TestBuildPromptCountsMessagesNotParagraphs(t *testing.T) {
	sessions := []models.Session{{ID: "s1", ProjectName: "web"}}
	messages := map[string][]models.Message{
		"s1": {textMessage("s1", models.RoleUser, "Fix the login bug.\n\nSteps:\n1. open page\n\n2. click")},
	}

	prompt := BuildPrompt("2026-10-17", ExtractProjectTexts(sessions, messages))

	assert.Contains(t, prompt, "Prompt count: 1\n")
}
