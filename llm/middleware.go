package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
)

// TokenCounter estimates token counts for text; used to backfill usage when a
// provider response does not report it.
type TokenCounter interface {
	CountTokens(text string) int
}

type loggingClient struct {
	inner  Client
	logger *slog.Logger
}

// WithLogging wraps a client so every generation is logged with duration,
// model and token usage.
func WithLogging(inner Client, logger *slog.Logger) Client {
	if logger == nil {
		logger = logging.WithComponent("llm")
	}
	return &loggingClient{inner: inner, logger: logger}
}

func (c *loggingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := c.inner.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("llm generate failed",
			"error", err,
			"timeout", IsTimeout(err),
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, err
	}
	c.logger.Debug("llm generate completed",
		"model", resp.Model,
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp, nil
}

type usageEstimatingClient struct {
	inner   Client
	counter TokenCounter
}

// WithUsageEstimation backfills token usage from a local tokenizer when the
// provider omits usage in its response.
func WithUsageEstimation(inner Client, counter TokenCounter) Client {
	if counter == nil {
		return inner
	}
	return &usageEstimatingClient{inner: inner, counter: counter}
}

func (c *usageEstimatingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Usage.TotalTokens == 0 {
		prompt := c.counter.CountTokens(req.SystemPrompt) + c.counter.CountTokens(req.Prompt)
		completion := c.counter.CountTokens(resp.Text)
		resp.Usage = Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
	}
	return resp, nil
}
