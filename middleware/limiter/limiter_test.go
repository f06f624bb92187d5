package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
)

func next(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
	return &consult.Outcome{}, nil
}

func TestRateLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewRateLimiter(2, 0)
	req := &consult.ConsultationRequest{CaseID: "c"}

	for i := 0; i < 2; i++ {
		if _, err := l.Execute(context.Background(), req, next); err != nil {
			t.Fatalf("request %d refused: %v", i, err)
		}
	}
	if _, err := l.Execute(context.Background(), req, next); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if got := l.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestRateLimiterResetReopensAdmission(t *testing.T) {
	l := NewRateLimiter(1, 0)
	req := &consult.ConsultationRequest{CaseID: "c"}

	if _, err := l.Execute(context.Background(), req, next); err != nil {
		t.Fatalf("first request refused: %v", err)
	}
	if _, err := l.Execute(context.Background(), req, next); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}

	l.Reset()
	if _, err := l.Execute(context.Background(), req, next); err != nil {
		t.Fatalf("request after reset refused: %v", err)
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	l := NewRateLimiter(1, 10*time.Millisecond)
	req := &consult.ConsultationRequest{CaseID: "c"}

	if _, err := l.Execute(context.Background(), req, next); err != nil {
		t.Fatalf("first request refused: %v", err)
	}
	if _, err := l.Execute(context.Background(), req, next); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited inside the window", err)
	}

	time.Sleep(15 * time.Millisecond)
	if _, err := l.Execute(context.Background(), req, next); err != nil {
		t.Fatalf("request after window expiry refused: %v", err)
	}
}
