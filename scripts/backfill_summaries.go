package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/session-insights/internal/config"
	"github.com/session-insights/internal/llm"
	"github.com/session-insights/internal/models"
	"github.com/session-insights/internal/storage"
	"github.com/session-insights/internal/summary"
)

func main() {
	// Parse flags
	kind := flag.String("kind", "", "Subject kind (user or guest); empty backfills every active subject")
	id := flag.String("id", "", "Subject id, required with -kind")
	start := flag.String("start", "", "First date to backfill (YYYY-MM-DD)")
	end := flag.String("end", "", "Last date to backfill (YYYY-MM-DD), defaults to -start")
	force := flag.Bool("force", false, "Regenerate summaries that already exist")
	dryRun := flag.Bool("dry-run", false, "Dry run mode (list subjects, don't generate)")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})

	log.Info().Msg("Starting summary backfill script")

	if *end == "" {
		*end = *start
	}
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start date")
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -end date")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load timezone")
	}

	storageClient, err := storage.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTimeout, location, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	llmClient := llm.NewClient(cfg, log.Logger)
	defer llmClient.Close()

	// Ranges here are bounded by the flags, not by the HTTP limit
	days := int(endDate.Sub(startDate).Hours()/24) + 1
	service := summary.NewService(storageClient, storageClient, llmClient, days, log.Logger)

	ctx := context.Background()
	startTime := time.Now()
	generated, skipped := 0, 0

	if *kind != "" {
		subjectKind, ok := models.ParseSubjectKind(*kind)
		if !ok || *id == "" {
			log.Fatal().Str("kind", *kind).Str("id", *id).Msg("Invalid subject")
		}
		subject := models.Subject{Kind: subjectKind, ID: *id}

		if *dryRun {
			log.Info().Str("subject", subject.String()).Int("days", days).Msg("Dry run mode: skipping generation")
			return
		}

		result, err := service.GenerateRange(ctx, subject, *start, *end, *force)
		if err != nil {
			log.Fatal().Err(err).Msg("Range generation failed")
		}
		generated, skipped = len(result.Generated), len(result.Skipped)
		for _, date := range result.Skipped {
			log.Info().Str("date", date).Str("reason", result.SkipReasons[date]).Msg("Skipped")
		}
	} else {
		for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
			date := day.Format("2006-01-02")

			subjects, err := storageClient.ListActiveSubjects(ctx, date)
			if err != nil {
				log.Error().Err(err).Str("date", date).Msg("Failed to list active subjects")
				continue
			}

			log.Info().Str("date", date).Int("subject_count", len(subjects)).Msg("Processing day")
			if *dryRun {
				continue
			}

			for _, subject := range subjects {
				outcome, err := service.GetOrGenerate(ctx, summary.Request{Subject: subject, Date: date, Force: *force})
				if err != nil {
					skipped++
					log.Error().Err(err).Str("subject", subject.String()).Str("date", date).Msg("Failed to generate summary")
					continue
				}
				if outcome.Cached {
					skipped++
					continue
				}
				generated++
			}
		}
	}

	log.Info().
		Int("generated", generated).
		Int("skipped", skipped).
		Dur("duration", time.Since(startTime)).
		Msg("Summary backfill completed")
}
