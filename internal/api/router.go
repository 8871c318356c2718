package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/session-insights/internal/models"
	"github.com/session-insights/internal/ratelimit"
	"github.com/session-insights/internal/summary"
)

// SummaryService is the part of the summary pipeline exposed over HTTP
type SummaryService interface {
	GetOrGenerate(ctx context.Context, req summary.Request) (*models.SummaryOutcome, error)
	Lookup(ctx context.Context, subject models.Subject, date string) (*models.SummaryOutcome, error)
	GenerateRange(ctx context.Context, subject models.Subject, startDate, endDate string, force bool) (*models.RangeResult, error)
}

// RegenerationLimiter bounds forced regenerations per subject
type RegenerationLimiter interface {
	Allow(subject models.Subject) *ratelimit.Result
	Refund(subject models.Subject)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the HTTP handler with all routes registered
func NewRouter(service SummaryService, limiter RegenerationLimiter, store Pinger, environment string, logger zerolog.Logger) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = logger.With().Str("component", "http").Logger()

	r := gin.New()
	r.Use(requestLogger(logger), recoverMiddleware(logger))

	r.GET("/healthz", HandleHealth(store))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1/summaries/:kind/:id")
	v1.POST("/range", HandleGenerateRange(service, limiter, logger))
	v1.GET("/:date", HandleGetSummary(service, logger))
	v1.POST("/:date", HandleGenerateSummary(service, limiter, logger))

	return r
}
