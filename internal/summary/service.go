package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/session-insights/internal/metrics"
	"github.com/session-insights/internal/models"
)

const dateLayout = "2006-01-02"

// noActivityKey is the summary key of the record returned for days without prompts
const noActivityKey = "no_activity"

// statusUndecoded marks a generation whose response could not be decoded at all
const statusUndecoded = "undecoded"

// SessionStore reads the raw session data for a day
type SessionStore interface {
	ListDaySessions(ctx context.Context, subject models.Subject, date string) ([]models.Session, error)
	ListMessages(ctx context.Context, sessionIDs []string) (map[string][]models.Message, error)
}

// Cache stores at most one summary per (subject, date)
type Cache interface {
	GetDailySummary(ctx context.Context, subject models.Subject, date string) (*models.SummaryRecord, error)
	SummaryExistsForDate(ctx context.Context, subject models.Subject, date string) (bool, error)
	ReplaceDailySummary(ctx context.Context, summary *models.SummaryRecord) error
}

// Generator turns a prompt into raw model text in a single attempt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request asks for the summary of one subject and day.
// When ProjectTexts is non-nil it is used instead of reading the session store.
type Request struct {
	Subject      models.Subject
	Date         string
	ProjectTexts []models.ProjectText
	Force        bool
}

// Service generates and caches daily work summaries
type Service struct {
	sessions     SessionStore
	cache        Cache
	generator    Generator
	locks        *keyLocker
	maxRangeDays int
	now          func() time.Time
	logger       zerolog.Logger
}

// NewService creates a new summary service
func NewService(
	sessions SessionStore,
	cache Cache,
	generator Generator,
	maxRangeDays int,
	logger zerolog.Logger,
) *Service {
	return &Service{
		sessions:     sessions,
		cache:        cache,
		generator:    generator,
		locks:        newKeyLocker(),
		maxRangeDays: maxRangeDays,
		now:          time.Now,
		logger:       logger.With().Str("component", "summary_service").Logger(),
	}
}

// GetOrGenerate returns the cached summary for the request's subject and date,
// generating and storing one on a miss or when Force is set.
// Only one request per (subject, date) runs at a time.
func (s *Service) GetOrGenerate(ctx context.Context, req Request) (*models.SummaryOutcome, error) {
	outcome, _, err := s.getOrGenerate(ctx, req)
	return outcome, err
}

func (s *Service) getOrGenerate(ctx context.Context, req Request) (*models.SummaryOutcome, string, error) {
	if !req.Subject.Valid() {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidSubject, req.Subject.String())
	}
	if _, err := parseDate(req.Date); err != nil {
		return nil, "", err
	}

	logger := s.logger.With().
		Str("subject", req.Subject.String()).
		Str("date", req.Date).
		Bool("force", req.Force).
		Logger()

	unlock, err := s.locks.Lock(ctx, req.Subject.String()+"|"+req.Date)
	if err != nil {
		return nil, "", fmt.Errorf("failed to acquire summary lock: %w", err)
	}
	defer unlock()

	if !req.Force {
		cached, err := s.cache.GetDailySummary(ctx, req.Subject, req.Date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read cached summary: %w", err)
		}
		if cached != nil {
			logger.Debug().Msg("Summary cache hit")
			metrics.RecordRequest(metrics.ResultHit)
			return cachedOutcome(cached), metrics.ResultHit, nil
		}
	} else {
		logger.Info().Msg("Force flag set, will regenerate summary if exists")
	}

	texts := req.ProjectTexts
	if texts == nil {
		texts, err = s.extract(ctx, req.Subject, req.Date)
		if err != nil {
			return nil, "", err
		}
	} else {
		texts = nonBlank(texts)
	}

	// Empty days are answered without generating and are not cached,
	// so sessions uploaded later are not hidden behind a stale record.
	if len(texts) == 0 {
		logger.Info().Msg("No activity for this date, skipping generation")
		metrics.RecordRequest(metrics.ResultEmpty)
		return s.noActivityOutcome(req.Subject, req.Date), metrics.ResultEmpty, nil
	}
	metrics.RecordRequest(metrics.ResultMiss)

	prompt := BuildPrompt(req.Date, texts)
	logger.Info().
		Int("project_count", len(texts)).
		Int("prompt_length", len(prompt)).
		Msg("Generating daily summary")

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, "", &GenerationError{Subject: req.Subject, Date: req.Date, Err: err}
	}

	v := Validate(raw)
	v.Record.SetSubject(req.Subject)
	v.Record.Date = req.Date
	v.Record.CreatedAt = s.now().UTC()
	metrics.RecordValidationErrors(len(v.Errors))

	outcome := v.Outcome()
	if !v.Decoded {
		logger.Warn().
			Strs("errors", v.Errors).
			Msg("Model response could not be decoded, not caching")
		return outcome, statusUndecoded, nil
	}

	if len(v.Errors) > 0 {
		logger.Warn().
			Strs("errors", v.Errors).
			Msg("Model response had field errors")
	}

	if err := s.cache.ReplaceDailySummary(ctx, v.Record); err != nil {
		// The paid generation is still returned to the caller
		metrics.RecordCacheWriteFailure()
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("cache write failed: %v", err))
		logger.Error().Err(err).Msg("Failed to store generated summary")
	}

	logger.Info().
		Bool("parse_success", outcome.ParseSuccess).
		Int("error_count", len(outcome.Errors)).
		Int("warning_count", len(outcome.Warnings)).
		Msg("Daily summary generated")

	return outcome, metrics.ResultMiss, nil
}

// Lookup returns the stored summary for a subject and date without generating.
// Returns nil without error when none exists.
func (s *Service) Lookup(ctx context.Context, subject models.Subject, date string) (*models.SummaryOutcome, error) {
	if !subject.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, subject.String())
	}
	if _, err := parseDate(date); err != nil {
		return nil, err
	}

	cached, err := s.cache.GetDailySummary(ctx, subject, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}
	if cached == nil {
		return nil, nil
	}
	return cachedOutcome(cached), nil
}

// GenerateRange generates summaries for every date from startDate to endDate inclusive.
// Dates are processed one after another to bound the number of paid generation
// calls per batch. A failing date is recorded as skipped and the batch continues.
func (s *Service) GenerateRange(ctx context.Context, subject models.Subject, startDate, endDate string, force bool) (*models.RangeResult, error) {
	if !subject.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, subject.String())
	}
	start, err := parseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, endDate, startDate)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.maxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidRange, days, s.maxRangeDays)
	}

	logger := s.logger.With().
		Str("subject", subject.String()).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Bool("force", force).
		Logger()
	logger.Info().Int("days", days).Msg("Starting range generation")

	result := &models.RangeResult{
		Generated:   []string{},
		Skipped:     []string{},
		SkipReasons: map[string]string{},
	}
	skip := func(date, reason string) {
		result.Skipped = append(result.Skipped, date)
		result.SkipReasons[date] = reason
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(dateLayout)

		if !force {
			exists, err := s.cache.SummaryExistsForDate(ctx, subject, date)
			if err != nil {
				logger.Error().Err(err).Str("date", date).Msg("Failed to check summary existence")
				skip(date, fmt.Sprintf("existence check failed: %v", err))
				continue
			}
			if exists {
				skip(date, "already generated")
				continue
			}
		}

		outcome, status, err := s.getOrGenerate(ctx, Request{Subject: subject, Date: date, Force: force})
		switch {
		case err != nil:
			logger.Error().Err(err).Str("date", date).Msg("Failed to generate summary in range")
			skip(date, err.Error())
		case status == metrics.ResultEmpty:
			skip(date, "no activity")
		case status == metrics.ResultHit:
			skip(date, "already generated")
		case status == statusUndecoded:
			skip(date, "model response could not be decoded: "+strings.Join(outcome.Errors, "; "))
		default:
			result.Generated = append(result.Generated, date)
		}
	}

	logger.Info().
		Int("generated", len(result.Generated)).
		Int("skipped", len(result.Skipped)).
		Msg("Range generation completed")

	return result, nil
}

// extract reads the day's sessions and messages and groups them by project
func (s *Service) extract(ctx context.Context, subject models.Subject, date string) ([]models.ProjectText, error) {
	sessions, err := s.sessions.ListDaySessions(ctx, subject, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return []models.ProjectText{}, nil
	}

	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}

	messages, err := s.sessions.ListMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return ExtractProjectTexts(sessions, messages), nil
}

// noActivityOutcome is the fixed answer for a day without prompts
func (s *Service) noActivityOutcome(subject models.Subject, date string) *models.SummaryOutcome {
	record := models.NewSummaryRecord(subject, date)
	record.Summary[noActivityKey] = fmt.Sprintf("No coding activity was recorded on %s.", date)
	record.QualityScoreExplanation = "No prompts to evaluate."
	record.CreatedAt = s.now().UTC()

	return &models.SummaryOutcome{
		Record:       record,
		ParseSuccess: true,
		Errors:       []string{},
		Warnings:     []string{},
		Cached:       false,
	}
}

// cachedOutcome rebuilds the error list of a stored record from its raw text
func cachedOutcome(record *models.SummaryRecord) *models.SummaryOutcome {
	outcome := &models.SummaryOutcome{
		Record:       record,
		ParseSuccess: len(record.Summary) > 0,
		Errors:       []string{},
		Warnings:     []string{},
		Cached:       true,
	}

	if record.RawText != "" {
		v := Validate(record.RawText)
		if v.Decoded {
			outcome.ParseSuccess = len(record.Summary) > 0 && len(v.Errors) == 0
			outcome.Errors = nonNil(v.Errors)
			outcome.Warnings = nonNil(v.Warnings)
		}
	}

	return outcome
}

func nonBlank(texts []models.ProjectText) []models.ProjectText {
	result := make([]models.ProjectText, 0, len(texts))
	for _, pt := range texts {
		if strings.TrimSpace(pt.UserText) == "" {
			continue
		}
		if strings.TrimSpace(pt.ProjectName) == "" {
			pt.ProjectName = UnknownProject
		}
		result = append(result, pt)
	}
	return result
}

// ValidateDate reports ErrInvalidDate unless date is in YYYY-MM-DD form
func ValidateDate(date string) error {
	_, err := parseDate(date)
	return err
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}
