package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/session-insights/internal/metrics"
	"github.com/session-insights/internal/models"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client represents a Gemini text generation client.
// Each call is a single attempt; retrying is up to the caller.
type Client struct {
	apiKey          string
	model           models.ModelType
	maxOutputTokens int32
	temperature     float32
	timeout         time.Duration
	sem             *semaphore.Weighted
	logger          zerolog.Logger
	genaiClient     *genai.Client
	mu              sync.Mutex
}

// NewClient creates a new Gemini client from configuration
func NewClient(config *models.AppConfig, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:          config.GeminiAPIKey,
		model:           config.SummaryModel,
		maxOutputTokens: config.SummaryMaxOutputTokens,
		temperature:     config.LLMTemperature,
		timeout:         time.Duration(config.GeminiTimeout) * time.Second,
		sem:             semaphore.NewWeighted(int64(config.MaxConcurrentGenerations)),
		logger:          logger.With().Str("component", "llm").Logger(),
		genaiClient:     nil, // Will be created on first use
	}
}

// getClient returns or creates a genai client (thread-safe)
func (c *Client) getClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genaiClient != nil {
		return c.genaiClient, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c.genaiClient = client
	c.logger.Info().Msg("Gemini client created and cached")
	return c.genaiClient, nil
}

// Close closes the LLM client and releases resources
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genaiClient != nil {
		err := c.genaiClient.Close()
		c.genaiClient = nil
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to close Gemini client")
			return err
		}
		c.logger.Info().Msg("Gemini client closed")
	}
	return nil
}

// Generate sends the prompt and returns the model's text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.run(ctx, prompt, func(ctx context.Context, model *genai.GenerativeModel) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		return responseText(resp)
	})
}

// GenerateStream sends the prompt and streams the answer through onChunk.
// The full text is returned once the stream ends.
func (c *Client) GenerateStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	return c.run(ctx, prompt, func(ctx context.Context, model *genai.GenerativeModel) (string, error) {
		iter := model.GenerateContentStream(ctx, genai.Text(prompt))

		var full strings.Builder
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to stream content: %w", err)
			}

			chunk, err := responseText(resp)
			if err != nil {
				if errors.Is(err, ErrEmptyResponse) {
					continue
				}
				return "", err
			}
			full.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}

		if strings.TrimSpace(full.String()) == "" {
			return "", ErrEmptyResponse
		}
		return full.String(), nil
	})
}

// StreamingGenerator generates through the streaming endpoint and returns the joined text
type StreamingGenerator struct {
	client *Client
}

// Streaming returns a generator backed by GenerateStream
func (c *Client) Streaming() *StreamingGenerator {
	return &StreamingGenerator{client: c}
}

// Generate streams the answer and returns it once complete
func (g *StreamingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	chunks := 0
	text, err := g.client.GenerateStream(ctx, prompt, func(string) { chunks++ })
	if err != nil {
		return "", err
	}

	g.client.logger.Debug().
		Int("chunk_count", chunks).
		Int("response_length", len(text)).
		Msg("Streamed generation completed")

	return text, nil
}

// run bounds a generation call by the concurrency limit and the timeout
func (c *Client) run(ctx context.Context, prompt string, call func(context.Context, *genai.GenerativeModel) (string, error)) (string, error) {
	startTime := time.Now()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire generation slot: %w", err)
	}
	defer c.sem.Release(1)

	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get genai client: %w", err)
	}

	model := client.GenerativeModel(c.model.String())
	model.SetTemperature(c.temperature)
	model.SetMaxOutputTokens(c.maxOutputTokens)
	model.ResponseMIMEType = JSONMimeType

	c.logger.Debug().
		Str("model", c.model.String()).
		Int("prompt_length", len(prompt)).
		Int32("max_output_tokens", c.maxOutputTokens).
		Msg("Sending request to LLM")

	text, err := call(ctx, model)
	duration := time.Since(startTime)
	metrics.ObserveGeneration(err == nil, duration.Seconds())

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("model", c.model.String()).
			Dur("duration", duration).
			Msg("LLM request failed")
		return "", err
	}

	c.logger.Info().
		Str("model", c.model.String()).
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("LLM response generated successfully")

	return text, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: prompt block reason %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no response candidates", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason %s", ErrBlocked, candidate.FinishReason)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content parts", ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
