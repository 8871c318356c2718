package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/session-insights/internal/models"
)

// Result describes the outcome of a limit check
type Result struct {
	Allowed       bool
	Used          int
	Limit         int
	Remaining     int
	ResetsInHours int
}

// Limiter caps forced regenerations per subject per local day.
// Counters live in memory and start over at midnight in the configured timezone.
type Limiter struct {
	timezone   *time.Location
	dailyLimit int
	now        func() time.Time
	logger     zerolog.Logger

	mu     sync.Mutex
	day    string
	counts map[models.Subject]int
}

// NewLimiter creates a new rate limiter
func NewLimiter(timezone string, dailyLimit int, logger zerolog.Logger) (*Limiter, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	return &Limiter{
		timezone:   loc,
		dailyLimit: dailyLimit,
		now:        time.Now,
		logger:     logger.With().Str("component", "ratelimit").Logger(),
		counts:     make(map[models.Subject]int),
	}, nil
}

// Allow records one forced regeneration for the subject if the daily limit permits it
func (l *Limiter) Allow(subject models.Subject) *Result {
	now := l.now().In(l.timezone)
	dateStr := now.Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.day != dateStr {
		l.day = dateStr
		l.counts = make(map[models.Subject]int)
	}

	used := l.counts[subject]
	result := &Result{
		Limit:         l.dailyLimit,
		ResetsInHours: l.hoursUntilMidnight(now),
	}

	if used >= l.dailyLimit {
		result.Used = used
		l.logger.Warn().
			Str("subject", subject.String()).
			Int("used", used).
			Int("limit", l.dailyLimit).
			Msg("Forced regeneration limit exceeded")
		return result
	}

	used++
	l.counts[subject] = used
	result.Allowed = true
	result.Used = used
	result.Remaining = l.dailyLimit - used

	l.logger.Debug().
		Str("subject", subject.String()).
		Int("used", used).
		Int("remaining", result.Remaining).
		Msg("Forced regeneration allowed")

	return result
}

// Refund returns a slot taken by Allow when the forced regeneration did not run.
// Slots from a previous day are already gone with the reset.
func (l *Limiter) Refund(subject models.Subject) {
	dateStr := l.now().In(l.timezone).Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.day != dateStr || l.counts[subject] == 0 {
		return
	}
	l.counts[subject]--

	l.logger.Debug().
		Str("subject", subject.String()).
		Int("used", l.counts[subject]).
		Msg("Forced regeneration refunded")
}

// hoursUntilMidnight calculates hours until midnight in the timezone
func (l *Limiter) hoursUntilMidnight(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, l.timezone)
	hours := int(midnight.Sub(now).Hours())

	// If less than 1 hour, show at least 1
	if hours < 1 {
		hours = 1
	}

	return hours
}
