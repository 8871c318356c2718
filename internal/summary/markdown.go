package summary

import (
	"regexp"
	"strings"

	"github.com/session-insights/internal/models"
)

// Older prompt versions asked for a markdown report with a summary section
// and a checklist of to-dos per project. Those responses are still accepted
// and mapped onto the JSON record shape. Markdown categories are free text,
// so every to-do lands in "other" and no time allocation is derived.

const legacyFormatWarning = "legacy markdown response format: work categories and quality score unavailable"

const generalProject = "general"

var checklistItem = regexp.MustCompile(`^[-*]\s*\[[ xX]?\]\s*(.+)$`)

// isLegacyMarkdown detects the markdown report format by its leading markers
func isLegacyMarkdown(payload string) bool {
	return strings.HasPrefix(payload, "#") ||
		strings.HasPrefix(payload, "- [") ||
		strings.HasPrefix(payload, "* [")
}

type markdownSection int

const (
	sectionNone markdownSection = iota
	sectionSummary
	sectionTodos
)

// parseLegacyMarkdown fills v from a markdown report.
// A payload with neither summary text nor checklist items, such as a refusal
// under a heading, is left undecoded.
func parseLegacyMarkdown(payload string, v *Validation) {
	section := sectionNone
	project := generalProject
	paragraphs := make(map[string][]string)
	var order []string

	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			project = strings.TrimSpace(strings.TrimPrefix(line, "### "))
			continue
		case strings.HasPrefix(line, "## "), strings.HasPrefix(line, "# "):
			title := strings.ToLower(strings.TrimLeft(line, "# "))
			project = generalProject
			switch {
			case strings.Contains(title, "todo"), strings.Contains(title, "to-do"), strings.Contains(title, "task"):
				section = sectionTodos
			case strings.Contains(title, "summary"):
				section = sectionSummary
			default:
				section = sectionNone
			}
			continue
		}

		if m := checklistItem.FindStringSubmatch(line); m != nil {
			// A checklist item is a to-do even when the heading did not say so
			addLegacyTodo(v.Record.ProjectTodos, project, strings.TrimSpace(m[1]))
			continue
		}

		if section == sectionSummary {
			key := Slugify(project)
			if _, seen := paragraphs[key]; !seen {
				order = append(order, key)
			}
			paragraphs[key] = append(paragraphs[key], strings.TrimLeft(line, "-* "))
		}
	}

	for _, key := range order {
		v.Record.Summary[key] = truncateRunes(strings.Join(paragraphs[key], " "), MaxSummaryChars)
	}

	if len(v.Record.Summary) == 0 && len(v.Record.ProjectTodos) == 0 {
		v.errorf("decode: markdown response has no summary section and no checklist items")
		return
	}

	v.Decoded = true
	v.warnf(legacyFormatWarning)
	if len(v.Record.Summary) == 0 {
		v.errorf("summary: no summary section found in markdown response")
	}
}

func addLegacyTodo(todos models.ProjectTodos, project, text string) {
	if text == "" {
		return
	}
	key := Slugify(project)
	list, ok := todos[key]
	if !ok {
		list = models.ProjectTodoList{ProjectName: project, Todos: []models.TodoItem{}}
	}
	list.Todos = append(list.Todos, models.TodoItem{Text: text, Category: models.CategoryOther})
	todos[key] = list
}
