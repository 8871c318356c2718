package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/session-insights/internal/models"
	"github.com/session-insights/internal/summary"
)

type generateBody struct {
	ProjectTexts    []models.ProjectText `json:"project_texts"`
	ForceRegenerate bool                 `json:"force_regenerate"`
}

type rangeBody struct {
	StartDate       string `json:"start_date" binding:"required"`
	EndDate         string `json:"end_date" binding:"required"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// HandleHealth GET /healthz
func HandleHealth(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// HandleGetSummary GET /api/v1/summaries/:kind/:id/:date
// Returns the stored summary without generating one.
func HandleGetSummary(service SummaryService, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := subjectParam(c)
		if !ok {
			return
		}

		outcome, err := service.Lookup(c.Request.Context(), subject, c.Param("date"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if outcome == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// HandleGenerateSummary POST /api/v1/summaries/:kind/:id/:date
// Body is optional: {"project_texts": [...], "force_regenerate": bool}
func HandleGenerateSummary(service SummaryService, limiter RegenerationLimiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := subjectParam(c)
		if !ok {
			return
		}

		var body generateBody
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
				return
			}
		}

		date := c.Param("date")
		if err := summary.ValidateDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if body.ForceRegenerate && !allowForced(c, limiter, subject) {
			return
		}

		outcome, err := service.GetOrGenerate(c.Request.Context(), summary.Request{
			Subject:      subject,
			Date:         date,
			ProjectTexts: body.ProjectTexts,
			Force:        body.ForceRegenerate,
		})
		if err != nil {
			if body.ForceRegenerate {
				limiter.Refund(subject)
			}
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// HandleGenerateRange POST /api/v1/summaries/:kind/:id/range
// A forced range counts as a single forced regeneration.
func HandleGenerateRange(service SummaryService, limiter RegenerationLimiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := subjectParam(c)
		if !ok {
			return
		}

		var body rangeBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		for _, date := range []string{body.StartDate, body.EndDate} {
			if err := summary.ValidateDate(date); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		if body.ForceRegenerate && !allowForced(c, limiter, subject) {
			return
		}

		// Errors here mean the range was rejected before any date ran
		result, err := service.GenerateRange(c.Request.Context(), subject, body.StartDate, body.EndDate, body.ForceRegenerate)
		if err != nil {
			if body.ForceRegenerate {
				limiter.Refund(subject)
			}
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func subjectParam(c *gin.Context) (models.Subject, bool) {
	kind, ok := models.ParseSubjectKind(c.Param("kind"))
	subject := models.Subject{Kind: kind, ID: c.Param("id")}
	if !ok || !subject.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": summary.ErrInvalidSubject.Error() + ": " + c.Param("kind")})
		return models.Subject{}, false
	}
	return subject, true
}

func allowForced(c *gin.Context, limiter RegenerationLimiter, subject models.Subject) bool {
	result := limiter.Allow(subject)
	if result.Allowed {
		return true
	}
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":           "daily forced regeneration limit reached",
		"limit":           result.Limit,
		"resets_in_hours": result.ResetsInHours,
	})
	return false
}

// writeError maps pipeline errors to HTTP status codes
func writeError(c *gin.Context, logger zerolog.Logger, err error) {
	var genErr *summary.GenerationError
	switch {
	case errors.Is(err, summary.ErrInvalidSubject),
		errors.Is(err, summary.ErrInvalidDate),
		errors.Is(err, summary.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &genErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": true})
	default:
		logger.Error().
			Err(err).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("Summary request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
