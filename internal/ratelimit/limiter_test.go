package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/session-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, now *time.Time) *Limiter {
	t.Helper()
	l, err := NewLimiter("UTC", limit, zerolog.Nop())
	require.NoError(t, err)
	l.now = func() time.Time { return *now }
	return l
}

func TestAllowCapsPerSubject(t *testing.T) {
	now := time.Date(2026, 10, 18, 10, 30, 0, 0, time.UTC)
	l := newTestLimiter(t, 2, &now)
	alice := models.Subject{Kind: models.SubjectUser, ID: "alice"}
	bob := models.Subject{Kind: models.SubjectGuest, ID: "bob"}

	first := l.Allow(alice)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	assert.True(t, l.Allow(alice).Allowed)

	denied := l.Allow(alice)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 2, denied.Used)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, 13, denied.ResetsInHours)

	assert.True(t, l.Allow(bob).Allowed)
}

func TestAllowResetsAtMidnight(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 50, 0, 0, time.UTC)
	l := newTestLimiter(t, 1, &now)
	alice := models.Subject{Kind: models.SubjectUser, ID: "alice"}

	assert.True(t, l.Allow(alice).Allowed)
	denied := l.Allow(alice)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 1, denied.ResetsInHours)

	now = now.Add(15 * time.Minute)
	assert.True(t, l.Allow(alice).Allowed)
}

func TestRefundRestoresSlot(t *testing.T) {
	now := time.Date(2026, 10, 18, 10, 30, 0, 0, time.UTC)
	l := newTestLimiter(t, 1, &now)
	alice := models.Subject{Kind: models.SubjectUser, ID: "alice"}

	require.True(t, l.Allow(alice).Allowed)
	require.False(t, l.Allow(alice).Allowed)

	l.Refund(alice)
	result := l.Allow(alice)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Used)

	// refunds never go below zero
	l.Refund(alice)
	l.Refund(alice)
	assert.True(t, l.Allow(alice).Allowed)
	assert.False(t, l.Allow(alice).Allowed)
}

func TestRefundAfterMidnightIsIgnored(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	l := newTestLimiter(t, 1, &now)
	alice := models.Subject{Kind: models.SubjectUser, ID: "alice"}

	require.True(t, l.Allow(alice).Allowed)

	now = now.Add(2 * time.Minute)
	l.Refund(alice)

	assert.True(t, l.Allow(alice).Allowed)
	assert.False(t, l.Allow(alice).Allowed)
}

func TestNewLimiterRejectsUnknownTimezone(t *testing.T) {
	_, err := NewLimiter("Mars/Olympus", 1, zerolog.Nop())
	assert.Error(t, err)
}
