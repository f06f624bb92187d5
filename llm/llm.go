// Package llm defines the provider-agnostic client contract used by the
// consultation pipelines. Providers live under contrib/provider.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
)

// Usage reports token consumption for one generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request bundles inputs for a single non-streaming LLM invocation.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	// Timeout bounds the call even when the parent context has no deadline.
	// Zero means the provider default applies.
	Timeout time.Duration
}

// Response captures the LLM reply for non-streaming calls.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client is the single-call LLM abstraction. Implementations must honor
// Request.Timeout and return an error wrapping errors.ErrLLMTimeout on
// deadline expiry so callers can classify the failure.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// CallContext derives the context a provider should use for its outbound call,
// applying Request.Timeout when set. The returned cancel must always be called.
func CallContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// IsTimeout reports whether err represents a deadline or timeout condition.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, apperrors.ErrLLMTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "deadline exceeded")
}

// IsTransient reports whether err is worth retrying: timeouts and
// transport-level failures, but not context cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsTimeout(err) || errors.Is(err, apperrors.ErrLLMTransport)
}
