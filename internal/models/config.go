package models

// ModelType represents a Gemini model identifier
type ModelType string

const (
	// ModelFlash is the default summary model; cheap and fast enough for daily runs.
	// SUMMARY_MODEL accepts any Gemini model id.
	ModelFlash ModelType = "gemini-2.0-flash"
)

// String returns string representation of ModelType
func (m ModelType) String() string {
	return string(m)
}

// AppConfig represents service configuration
type AppConfig struct {
	// HTTP settings
	HTTPAddr string

	// Gemini API settings
	GeminiAPIKey             string
	GeminiTimeout            int
	SummaryModel             ModelType
	SummaryMaxOutputTokens   int32
	LLMTemperature           float32
	MaxConcurrentGenerations int
	SummaryStreaming         bool

	// Supabase settings
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout int

	// App settings
	Timezone    string
	LogLevel    string
	Environment string

	// Summary pipeline
	SummaryMaxRangeDays       int
	ForceRegenerateDailyLimit int
	NightlySummaryEnabled     bool
	NightlySummarySchedule    string
}
