package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
)

func passthrough(called *bool) middleware.Handler {
	return func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
		*called = true
		return &consult.Outcome{}, nil
	}
}

func TestRequestValidatorRejectsNilRequest(t *testing.T) {
	var called bool
	_, err := NewRequestValidator(nil).Execute(context.Background(), nil, passthrough(&called))
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if called {
		t.Error("next must not run for a nil request")
	}
}

func TestRequestValidatorRejectsInvalidUTF8(t *testing.T) {
	var called bool
	req := &consult.ConsultationRequest{CaseID: "c", Description: string([]byte{0xff, 0xfe})}
	_, err := NewRequestValidator(nil).Execute(context.Background(), req, passthrough(&called))
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestRequestValidatorAppliesCustomCheck(t *testing.T) {
	custom := errors.New("case id required")
	v := NewRequestValidator(func(req *consult.ConsultationRequest) error {
		if req.CaseID == "" {
			return custom
		}
		return nil
	})

	var called bool
	_, err := v.Execute(context.Background(), &consult.ConsultationRequest{Description: "d"}, passthrough(&called))
	if !errors.Is(err, custom) {
		t.Fatalf("error = %v, want the custom validation error", err)
	}
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Error("custom failures must still map to ErrInvalidInput")
	}

	if _, err := v.Execute(context.Background(), &consult.ConsultationRequest{CaseID: "c", Description: "d"}, passthrough(&called)); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if !called {
		t.Error("next did not run for a valid request")
	}
}

func TestOutcomeFilterCanRejectResults(t *testing.T) {
	blocked := errors.New("confidence too low")
	f := NewOutcomeFilter(func(o *consult.Outcome) error {
		if o.Brief != nil && o.Brief.Confidence < 0.2 {
			return blocked
		}
		return nil
	})

	next := func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
		return &consult.Outcome{Brief: &consult.Brief{Confidence: 0.1}}, nil
	}
	if _, err := f.Execute(context.Background(), &consult.ConsultationRequest{CaseID: "c"}, next); !errors.Is(err, blocked) {
		t.Fatalf("error = %v, want %v", err, blocked)
	}
}
