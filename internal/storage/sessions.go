package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/session-insights/internal/models"
	"github.com/supabase/postgrest-go"
)

var ascending = &postgrest.OrderOpts{Ascending: true}

// ListDaySessions retrieves a subject's sessions started on a date, oldest first
func (c *Client) ListDaySessions(ctx context.Context, subject models.Subject, date string) ([]models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startUTC, endUTC, err := c.dayBounds(date)
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	operation := "list_day_sessions"

	err = c.withRetry(ctx, operation, func() error {
		data, _, err := c.client.From(tableSessions).
			Select("id,user_id,guest_id,project_id,project_name,started_at", "exact", false).
			Eq(subject.Column(), subject.ID).
			Gte("started_at", startUTC.Format(time.RFC3339)).
			Lt("started_at", endUTC.Format(time.RFC3339)).
			Order("started_at", ascending).
			Execute()

		if err != nil {
			return fmt.Errorf("failed to fetch sessions: %w", err)
		}

		if err := json.Unmarshal(data, &sessions); err != nil {
			return fmt.Errorf("failed to unmarshal sessions: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("subject", subject.String()).
			Str("date", date).
			Msg("Failed to list day sessions")
		return nil, err
	}

	c.logger.Debug().
		Str("subject", subject.String()).
		Str("date", date).
		Int("session_count", len(sessions)).
		Msg("Listed day sessions")

	return sessions, nil
}

// ListMessages retrieves the messages of the given sessions, keyed by session id
func (c *Client) ListMessages(ctx context.Context, sessionIDs []string) (map[string][]models.Message, error) {
	result := make(map[string][]models.Message, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []models.Message
	operation := "list_messages"

	err := c.withRetry(ctx, operation, func() error {
		data, _, err := c.client.From(tableMessages).
			Select("session_id,role,content,created_at", "exact", false).
			In("session_id", sessionIDs).
			Order("created_at", ascending).
			Execute()

		if err != nil {
			return fmt.Errorf("failed to fetch messages: %w", err)
		}

		if err := json.Unmarshal(data, &messages); err != nil {
			return fmt.Errorf("failed to unmarshal messages: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Int("session_count", len(sessionIDs)).
			Msg("Failed to list messages")
		return nil, err
	}

	for _, msg := range messages {
		result[msg.SessionID] = append(result[msg.SessionID], msg)
	}

	c.logger.Debug().
		Int("session_count", len(sessionIDs)).
		Int("message_count", len(messages)).
		Msg("Listed session messages")

	return result, nil
}

// ListActiveSubjects returns every subject with at least one session on a date
func (c *Client) ListActiveSubjects(ctx context.Context, date string) ([]models.Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startUTC, endUTC, err := c.dayBounds(date)
	if err != nil {
		return nil, err
	}

	var rows []models.Session
	operation := "list_active_subjects"

	err = c.withRetry(ctx, operation, func() error {
		data, _, err := c.client.From(tableSessions).
			Select("user_id,guest_id", "exact", false).
			Gte("started_at", startUTC.Format(time.RFC3339)).
			Lt("started_at", endUTC.Format(time.RFC3339)).
			Execute()

		if err != nil {
			return fmt.Errorf("failed to fetch sessions: %w", err)
		}

		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("failed to unmarshal sessions: %w", err)
		}

		return nil
	})

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("date", date).
			Msg("Failed to list active subjects")
		return nil, err
	}

	// Note: Supabase Go client doesn't support DISTINCT directly
	// We'll fetch all sessions and dedupe them in Go
	seen := make(map[models.Subject]bool)
	subjects := make([]models.Subject, 0)
	for _, row := range rows {
		var subject models.Subject
		switch {
		case row.UserID != nil:
			subject = models.Subject{Kind: models.SubjectUser, ID: *row.UserID}
		case row.GuestID != nil:
			subject = models.Subject{Kind: models.SubjectGuest, ID: *row.GuestID}
		default:
			continue
		}
		if !seen[subject] {
			seen[subject] = true
			subjects = append(subjects, subject)
		}
	}

	c.logger.Debug().
		Str("date", date).
		Int("subject_count", len(subjects)).
		Msg("Listed active subjects")

	return subjects, nil
}
