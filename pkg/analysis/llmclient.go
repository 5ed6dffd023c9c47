package analysis

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// LLMClient completes a single prompt and returns the raw response text.
// Implemented here against anthropic-sdk-go; the orchestrator depends only
// on this interface so a fake can stand in for tests.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicClient wraps the Anthropic Messages API behind a circuit breaker
// and a bounded exponential backoff, so a flaky or rate-limited LLM
// endpoint degrades the breaker to open rather than stalling every
// analysis run in lockstep.
type AnthropicClient struct {
	client  anthropic.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[string]
	log     *logrus.Logger
}

func NewAnthropicClient(cfg Config, log *logrus.Logger) *AnthropicClient {
	cfg = cfg.WithDefaults()

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "analysis-llm",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		cfg:     cfg,
		breaker: breaker,
		log:     log,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	operation := func() (string, error) {
		return c.breaker.Execute(func() (string, error) {
			message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:       anthropic.Model(c.cfg.ModelName),
				MaxTokens:   int64(c.cfg.MaxTokens),
				Temperature: anthropic.Float(c.cfg.Temperature),
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
				},
			})
			if err != nil {
				return "", err
			}
			return extractText(message), nil
		})
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return "", fmt.Errorf("llm call failed after retries: %w", err)
	}
	return text, nil
}

// HealthCheck reports the breaker's circuit state without spending a real
// completion call: an open circuit means the last few calls to Anthropic
// failed, which is the same signal /analysis/health wants to surface.
func (c *AnthropicClient) HealthCheck(_ context.Context) (healthy bool, model string) {
	return c.breaker.State() != gobreaker.StateOpen, c.cfg.ModelName
}

func extractText(message *anthropic.Message) string {
	var out string
	for _, block := range message.Content {
		if text := block.AsText(); text.Text != "" {
			out += text.Text
		}
	}
	return out
}
