package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/session-insights/internal/models"
)

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (*models.AppConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	config := &models.AppConfig{
		// HTTP settings
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		// Gemini API settings
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiTimeout:            getEnvInt("GEMINI_TIMEOUT", 120),
		SummaryModel:             models.ModelType(getEnv("SUMMARY_MODEL", string(models.ModelFlash))),
		SummaryMaxOutputTokens:   int32(getEnvInt("SUMMARY_MAX_OUTPUT_TOKENS", 8192)),
		LLMTemperature:           getEnvFloat32("LLM_TEMPERATURE", 0.2),
		MaxConcurrentGenerations: getEnvInt("MAX_CONCURRENT_GENERATIONS", 4),
		SummaryStreaming:         getEnvBool("SUMMARY_STREAMING", false),

		// Supabase settings
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseTimeout: getEnvInt("SUPABASE_TIMEOUT", 10),

		// App settings
		Timezone:    getEnv("TIMEZONE", "UTC"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),

		// Summary pipeline
		SummaryMaxRangeDays:       getEnvInt("SUMMARY_MAX_RANGE_DAYS", 31),
		ForceRegenerateDailyLimit: getEnvInt("FORCE_REGENERATE_DAILY_LIMIT", 10),
		NightlySummaryEnabled:     getEnvBool("NIGHTLY_SUMMARY_ENABLED", false),
		NightlySummarySchedule:    getEnv("NIGHTLY_SUMMARY_SCHEDULE", "0 3 * * *"),
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks if all required configuration values are set
func validate(cfg *models.AppConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_KEY is required")
	}

	// Validate positive values
	if cfg.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive, got %d", cfg.GeminiTimeout)
	}
	if cfg.SupabaseTimeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %d", cfg.SupabaseTimeout)
	}
	if cfg.SummaryMaxOutputTokens <= 0 {
		return fmt.Errorf("SUMMARY_MAX_OUTPUT_TOKENS must be positive, got %d", cfg.SummaryMaxOutputTokens)
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_GENERATIONS must be positive, got %d", cfg.MaxConcurrentGenerations)
	}
	if cfg.SummaryMaxRangeDays <= 0 {
		return fmt.Errorf("SUMMARY_MAX_RANGE_DAYS must be positive, got %d", cfg.SummaryMaxRangeDays)
	}
	if cfg.ForceRegenerateDailyLimit <= 0 {
		return fmt.Errorf("FORCE_REGENERATE_DAILY_LIMIT must be positive, got %d", cfg.ForceRegenerateDailyLimit)
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", cfg.LLMTemperature)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", cfg.Timezone, err)
	}

	if cfg.NightlySummaryEnabled {
		if _, err := cron.ParseStandard(cfg.NightlySummarySchedule); err != nil {
			return fmt.Errorf("NIGHTLY_SUMMARY_SCHEDULE %q is invalid: %w", cfg.NightlySummarySchedule, err)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvFloat32 retrieves environment variable as float32 or returns default value
func getEnvFloat32(key string, defaultValue float32) float32 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 32)
	if err != nil {
		return defaultValue
	}

	return float32(value)
}

// getEnvBool retrieves environment variable as bool or returns default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
