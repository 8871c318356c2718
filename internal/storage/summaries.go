package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/session-insights/internal/models"
)

// GetDailySummary retrieves the summary for a subject and date.
// Returns nil without error when none exists.
func (c *Client) GetDailySummary(ctx context.Context, subject models.Subject, date string) (*models.SummaryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var summaries []models.SummaryRecord
	operation := "get_daily_summary"

	err := c.withRetry(ctx, operation, func() error {
		data, _, err := c.client.From(tableDailySummaries).
			Select("*", "exact", false).
			Eq(subject.Column(), subject.ID).
			Eq("date", date).
			Limit(1, "").
			Execute()

		if err != nil {
			return fmt.Errorf("failed to fetch daily summary: %w", err)
		}

		if err := json.Unmarshal(data, &summaries); err != nil {
			return fmt.Errorf("failed to unmarshal summary: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("subject", subject.String()).
			Str("date", date).
			Msg("Failed to get daily summary")
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, nil
	}

	c.logger.Debug().
		Str("subject", subject.String()).
		Str("date", date).
		Msg("Retrieved daily summary")

	return &summaries[0], nil
}

// SummaryExistsForDate checks if a summary already exists for a specific date
func (c *Client) SummaryExistsForDate(ctx context.Context, subject models.Subject, date string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []struct {
		ID int64 `json:"id"`
	}
	operation := "check_summary_exists"

	err := c.withRetry(ctx, operation, func() error {
		data, _, err := c.client.From(tableDailySummaries).
			Select("id", "exact", false).
			Eq(subject.Column(), subject.ID).
			Eq("date", date).
			Limit(1, "").
			Execute()

		if err != nil {
			return fmt.Errorf("failed to check summary existence: %w", err)
		}

		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("failed to unmarshal summaries: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("subject", subject.String()).
			Str("date", date).
			Msg("Failed to check if summary exists")
		return false, err
	}

	exists := len(rows) > 0

	c.logger.Debug().
		Str("subject", subject.String()).
		Str("date", date).
		Bool("exists", exists).
		Msg("Checked summary existence")

	return exists, nil
}

// ReplaceDailySummary stores a summary, removing any previous one for the same subject and date.
// The table has no reliable upsert-with-full-replace, so this deletes then inserts;
// a retry repeats both steps, which keeps a single row per (subject, date).
// Callers must serialize calls per key.
func (c *Client) ReplaceDailySummary(ctx context.Context, summary *models.SummaryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	subject := summary.Subject()
	if !subject.Valid() {
		return fmt.Errorf("summary has no subject")
	}

	// Set created_at if not set
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	operation := "replace_daily_summary"
	err := c.withRetry(ctx, operation, func() error {
		_, _, err := c.client.From(tableDailySummaries).
			Delete("minimal", "").
			Eq(subject.Column(), subject.ID).
			Eq("date", summary.Date).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to delete previous daily summary: %w", err)
		}

		data := map[string]interface{}{
			"user_id":                   summary.UserID,
			"guest_id":                  summary.GuestID,
			"date":                      summary.Date,
			"summary":                   summary.Summary,
			"work_categories":           summary.WorkCategories,
			"project_todos":             summary.ProjectTodos,
			"quality_score":             summary.QualityScore,
			"quality_score_explanation": summary.QualityScoreExplanation,
			"raw_text":                  summary.RawText,
			"created_at":                summary.CreatedAt,
		}

		_, _, err = c.client.From(tableDailySummaries).
			Insert(data, false, "", "minimal", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to insert daily summary: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("subject", subject.String()).
			Str("date", summary.Date).
			Msg("Failed to save daily summary")
		return err
	}

	c.logger.Info().
		Str("subject", subject.String()).
		Str("date", summary.Date).
		Int("project_count", len(summary.Summary)).
		Float64("quality_score", summary.QualityScore).
		Msg("Daily summary saved successfully")

	return nil
}
