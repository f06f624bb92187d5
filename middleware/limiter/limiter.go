// Package limiter bounds how many consultations are admitted per time
// window. It protects the model providers from bursts; the runner's
// semaphore separately bounds concurrency.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
)

// RateLimiter admits at most maxRequests consultations per window. A zero
// window means the counter only resets via Reset.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu          sync.Mutex
	counter     int
	windowStart time.Time
}

// NewRateLimiter creates a rate limiting middleware.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		windowStart: time.Now(),
	}
}

func (m *RateLimiter) Name() string { return "rate_limiter" }

func (m *RateLimiter) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	if err := m.admit(); err != nil {
		return nil, err
	}
	return next(ctx, req)
}

func (m *RateLimiter) admit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.window > 0 && time.Since(m.windowStart) >= m.window {
		m.counter = 0
		m.windowStart = time.Now()
	}
	if m.counter >= m.maxRequests {
		return apperrors.ErrRateLimited
	}
	m.counter++
	return nil
}

// Reset clears the admission counter.
func (m *RateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = 0
	m.windowStart = time.Now()
}

// Count returns how many requests the current window has admitted.
func (m *RateLimiter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}
