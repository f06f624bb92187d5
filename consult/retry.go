package consult

import (
	"context"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/llm"
)

// RetryPolicy retries an operation on transient failures with exponential
// backoff. Attempts are bounded by MaxAttempts (the first call counts as
// attempt one); a nil Retryable defaults to llm.IsTransient.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Retryable      func(error) bool
}

func retryPolicyFromConfig(cfg *Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// Do runs fn until it succeeds, exhausts attempts, fails non-transiently,
// or the context is done. It returns the last error and the number of
// retries performed (attempts beyond the first).
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = llm.IsTransient
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt - 1, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) {
			return attempt, err
		}
	}
	return attempts - 1, err
}
