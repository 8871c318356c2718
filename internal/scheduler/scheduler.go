package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/session-insights/internal/models"
	"github.com/session-insights/internal/summary"
)

// SubjectLister finds the subjects that had sessions on a date
type SubjectLister interface {
	ListActiveSubjects(ctx context.Context, date string) ([]models.Subject, error)
}

// Summarizer produces the daily summary for one subject and date
type Summarizer interface {
	GetOrGenerate(ctx context.Context, req summary.Request) (*models.SummaryOutcome, error)
}

// Scheduler pre-generates yesterday's summaries on a cron schedule
type Scheduler struct {
	subjects   SubjectLister
	summarizer Summarizer
	cron       *cron.Cron
	schedule   string
	timezone   *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	subjects SubjectLister,
	summarizer Summarizer,
	config *models.AppConfig,
	logger zerolog.Logger,
) (*Scheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", config.Timezone, err)
	}

	return &Scheduler{
		subjects:   subjects,
		summarizer: summarizer,
		cron:       cron.New(cron.WithLocation(loc)),
		schedule:   config.NightlySummarySchedule,
		timezone:   loc,
		now:        time.Now,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start registers the nightly job and blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting scheduler...")

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.RunDailySummaries(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register nightly summary job: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("Scheduled nightly summaries")

	<-ctx.Done()
	s.Stop()
	s.logger.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// Stop stops the cron runner and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunDailySummaries generates yesterday's summary for every active subject.
// Subjects are processed one at a time; a failure is logged and the run continues.
func (s *Scheduler) RunDailySummaries(ctx context.Context) {
	yesterday := s.now().In(s.timezone).AddDate(0, 0, -1)
	dateStr := yesterday.Format("2006-01-02")
	logger := s.logger.With().Str("date", dateStr).Logger()

	subjects, err := s.subjects.ListActiveSubjects(ctx, dateStr)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list active subjects")
		return
	}

	logger.Info().
		Int("subject_count", len(subjects)).
		Msg("Generating summaries for yesterday")

	failed := 0
	for _, subject := range subjects {
		if ctx.Err() != nil {
			logger.Warn().Msg("Nightly run cancelled")
			return
		}

		outcome, err := s.summarizer.GetOrGenerate(ctx, summary.Request{Subject: subject, Date: dateStr})
		if err != nil {
			failed++
			logger.Error().
				Err(err).
				Str("subject", subject.String()).
				Msg("Failed to process daily summary")
			continue
		}

		logger.Debug().
			Str("subject", subject.String()).
			Bool("cached", outcome.Cached).
			Bool("parse_success", outcome.ParseSuccess).
			Msg("Daily summary processed")
	}

	logger.Info().
		Int("subject_count", len(subjects)).
		Int("failed", failed).
		Msg("Nightly summaries completed")
}
