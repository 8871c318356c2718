package summary

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/session-insights/internal/models"
)

// MaxPromptChars is the hard upper bound on a rendered prompt, in characters.
// Generation cost and latency grow with prompt size and the model has a fixed context window.
const MaxPromptChars = 150000

// TruncationMarker is appended when the data section had to be cut
const TruncationMarker = "\n\n[... text truncated: prompt exceeded 150000 characters ...]\n"

// contractTemplate is the fixed instruction block. %s is the date.
const contractTemplate = `You are analysing one developer's prompts to an AI coding assistant on %s.
Classify how the day was spent, summarise each project and list follow-up tasks.

Respond with a single JSON object and nothing else. It MUST have exactly these 5 fields:

1. "summary": an object mapping each project key to a plain-text summary of at most 500 characters.
2. "work_categories": an object with exactly these 7 keys:
   "planning", "frontend", "backend", "qa", "devops", "research", "other".
   Each value is {"minutes": <integer >= 0>, "percentage": <number 0-100>, "description": <string or null>}.
   The 7 percentages must add up to 100.
3. "project_todos": an object mapping each project key to
   {"project_id": <string or null>, "project_name": <string>, "todos": [{"text": <string>, "category": <one of the 7 category names>}]}.
4. "quality_score": a number between 0 and 1 rating how clear and well-scoped the prompts were.
5. "quality_score_explanation": a string of at most 300 characters explaining the score.

Use the project keys exactly as given in the data section.

Correct example:
{
  "summary": {"billing_api": "Added invoice export endpoint and fixed rounding in tax calculation."},
  "work_categories": {
    "planning": {"minutes": 20, "percentage": 10, "description": "Scoped the export feature"},
    "frontend": {"minutes": 0, "percentage": 0, "description": null},
    "backend": {"minutes": 120, "percentage": 60, "description": "Invoice export endpoint"},
    "qa": {"minutes": 40, "percentage": 20, "description": "Tests for tax rounding"},
    "devops": {"minutes": 0, "percentage": 0, "description": null},
    "research": {"minutes": 20, "percentage": 10, "description": "Compared CSV libraries"},
    "other": {"minutes": 0, "percentage": 0, "description": null}
  },
  "project_todos": {
    "billing_api": {
      "project_id": null,
      "project_name": "billing-api",
      "todos": [
        {"text": "Paginate the export for large accounts", "category": "backend"},
        {"text": "Add a regression test for zero-amount invoices", "category": "qa"}
      ]
    }
  },
  "quality_score": 0.8,
  "quality_score_explanation": "Prompts were specific and included file paths, some lacked acceptance criteria."
}

Incorrect shapes that will be rejected:
- "project_todos": {"billing_api": ["Paginate the export", "Add a test"]}   (todos must be an object with a "todos" array)
- "summary": "Worked on billing."   (summary must be an object keyed by project)
- "quality_score": 80   (the score is between 0 and 1, not a percentage)
- categories other than the 7 listed above

`

// BuildPrompt renders the analysis prompt for a day's project texts.
// The result never exceeds MaxPromptChars characters; an oversized data
// section is cut at a fixed offset so the same input always yields the same prompt.
func BuildPrompt(date string, texts []models.ProjectText) string {
	contract := fmt.Sprintf(contractTemplate, date)
	data := renderDataSection(texts)

	contractLen := utf8.RuneCountInString(contract)
	if contractLen+utf8.RuneCountInString(data) <= MaxPromptChars {
		return contract + data
	}

	keep := MaxPromptChars - contractLen - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}

	return contract + truncateRunes(data, keep) + TruncationMarker
}

// renderDataSection lists every project with its key, prompt count, size and text
func renderDataSection(texts []models.ProjectText) string {
	var sb strings.Builder

	sb.WriteString("DATA\n")
	slugs := ProjectSlugs(texts)
	for i, pt := range texts {
		sb.WriteString(fmt.Sprintf("\n=== Project: %s ===\n", pt.ProjectName))
		sb.WriteString(fmt.Sprintf("Project key: %s\n", slugs[i]))
		sb.WriteString(fmt.Sprintf("Prompt count: %d\n", countPrompts(pt)))
		sb.WriteString(fmt.Sprintf("Character count: %d\n\n", utf8.RuneCountInString(pt.UserText)))
		sb.WriteString(pt.UserText)
		sb.WriteString("\n")
	}

	return sb.String()
}

// ProjectSlugs returns a unique slug for each project text, in order
func ProjectSlugs(texts []models.ProjectText) []string {
	slugs := make([]string, len(texts))
	used := make(map[string]bool)

	for i, pt := range texts {
		base := Slugify(pt.ProjectName)
		slug := base
		// A suffixed slug may already belong to a project named e.g. "web app 2"
		for n := 2; used[slug]; n++ {
			slug = fmt.Sprintf("%s_%d", base, n)
		}
		used[slug] = true
		slugs[i] = slug
	}

	return slugs
}

// Slugify lowercases name and collapses runs of non-alphanumerics into "_"
func Slugify(name string) string {
	var sb strings.Builder
	pendingSep := false

	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	if sb.Len() == 0 {
		return UnknownProject
	}
	return sb.String()
}

// truncateRunes returns the first n runes of s
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
