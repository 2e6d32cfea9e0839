package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/metrics"
)

// Client is the metered AI provider using the OpenAI-compatible chat API.
// It is the single paid call the governance pipeline wraps: every response
// carries the token usage the cost calculator bills from.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the AI provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewClient creates an OpenAI-compatible chat client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Completion is one answered AI request with its billable usage.
type Completion struct {
	Text      string
	Model     string
	TokensIn  int64
	TokensOut int64
	Duration  time.Duration
}

// Complete runs one chat completion and returns the text with actual token
// usage. Transport metrics are recorded here; billing happens upstream.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return Completion{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return Completion{}, fmt.Errorf("empty completion response: %w", domain.ErrProviderError)
	}

	metrics.AIRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	metrics.AITokensTotal.WithLabelValues(c.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.AITokensTotal.WithLabelValues(c.model, "output").Add(float64(resp.Usage.CompletionTokens))

	return Completion{
		Text:      resp.Choices[0].Message.Content,
		Model:     resp.Model,
		TokensIn:  int64(resp.Usage.PromptTokens),
		TokensOut: int64(resp.Usage.CompletionTokens),
		Duration:  duration,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("ai API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("ai API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("ai API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("ai request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
