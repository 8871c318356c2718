package summary

import (
	"strings"

	"github.com/session-insights/internal/models"
)

// UnknownProject is used for sessions that do not declare a project
const UnknownProject = "unknown"

// ExtractProjectTexts groups a day's user-authored prompts by project.
// Sessions must be in chronological order; messages are keyed by session id
// and kept in their stored order. Tool calls and other structured content
// are dropped. Projects without any text are omitted.
func ExtractProjectTexts(sessions []models.Session, messages map[string][]models.Message) []models.ProjectText {
	if len(sessions) == 0 {
		return []models.ProjectText{}
	}

	order := make([]string, 0)
	blocks := make(map[string][]string)

	for _, session := range sessions {
		project := strings.TrimSpace(session.ProjectName)
		if project == "" {
			project = UnknownProject
		}

		if _, seen := blocks[project]; !seen {
			order = append(order, project)
			blocks[project] = nil
		}

		for _, msg := range messages[session.ID] {
			if msg.Role != models.RoleUser {
				continue
			}
			text, ok := msg.TextContent()
			if !ok {
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			blocks[project] = append(blocks[project], text)
		}
	}

	result := make([]models.ProjectText, 0, len(order))
	for _, project := range order {
		if len(blocks[project]) == 0 {
			continue
		}
		result = append(result, models.ProjectText{
			ProjectName: project,
			UserText:    strings.Join(blocks[project], "\n\n"),
			PromptCount: len(blocks[project]),
		})
	}

	return result
}

// countPrompts returns the number of prompts in a ProjectText.
// Texts not built by ExtractProjectTexts carry no count; their blank-line
// separators are counted instead.
func countPrompts(pt models.ProjectText) int {
	if pt.PromptCount > 0 {
		return pt.PromptCount
	}
	if strings.TrimSpace(pt.UserText) == "" {
		return 0
	}
	return strings.Count(pt.UserText, "\n\n") + 1
}
