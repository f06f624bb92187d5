package errorhandler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
)

func TestErrorHandlerTranslatesErrors(t *testing.T) {
	inner := errors.New("connection refused")
	h := New(func(err error) error {
		return fmt.Errorf("%w: %w", apperrors.ErrInternal, err)
	})

	_, err := h.Execute(context.Background(), &consult.ConsultationRequest{CaseID: "c"},
		func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
			return nil, inner
		})
	if !errors.Is(err, apperrors.ErrInternal) || !errors.Is(err, inner) {
		t.Fatalf("error = %v, want both ErrInternal and the cause", err)
	}
}

func TestErrorHandlerPassesSuccessThrough(t *testing.T) {
	want := &consult.Outcome{Brief: &consult.Brief{ExecutiveSummary: "counsel"}}
	h := New(func(err error) error { return errors.New("should not run") })

	outcome, err := h.Execute(context.Background(), &consult.ConsultationRequest{CaseID: "c"},
		func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
			return want, nil
		})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if outcome != want {
		t.Error("outcome not passed through")
	}
}

func TestRecoveryConvertsPanics(t *testing.T) {
	r := NewRecovery()
	outcome, err := r.Execute(context.Background(), &consult.ConsultationRequest{CaseID: "c"},
		func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
			panic("boom")
		})
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal", err)
	}
	if outcome != nil {
		t.Error("outcome must be nil after a panic")
	}
}
