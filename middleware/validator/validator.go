// Package validator provides request and outcome checks for the
// consultation middleware chain. Content-level rejection (length bounds,
// dilemma classification) belongs to the pipelines; the validator guards
// the transport boundary only.
package validator

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
)

// ValidatorFunc validates an incoming request.
type ValidatorFunc func(*consult.ConsultationRequest) error

// FilterFunc inspects or transforms a finished outcome.
type FilterFunc func(*consult.Outcome) error

// RequestValidator rejects malformed requests before they reach the
// dispatcher.
type RequestValidator struct {
	validate ValidatorFunc
}

// NewRequestValidator creates a request validation middleware. A nil
// function means only the default checks run.
func NewRequestValidator(validate ValidatorFunc) *RequestValidator {
	return &RequestValidator{validate: validate}
}

func (m *RequestValidator) Name() string { return "request_validator" }

func (m *RequestValidator) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", apperrors.ErrInvalidInput)
	}
	if !utf8.ValidString(req.Description) || !utf8.ValidString(req.Title) {
		return nil, fmt.Errorf("%w: request is not valid UTF-8", apperrors.ErrInvalidInput)
	}
	if m.validate != nil {
		if err := m.validate(req); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
	}
	return next(ctx, req)
}

// OutcomeFilter inspects or transforms the outcome after dispatch.
type OutcomeFilter struct {
	filter FilterFunc
}

// NewOutcomeFilter creates an outcome filtering middleware.
func NewOutcomeFilter(filter FilterFunc) *OutcomeFilter {
	return &OutcomeFilter{filter: filter}
}

func (m *OutcomeFilter) Name() string { return "outcome_filter" }

func (m *OutcomeFilter) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	outcome, err := next(ctx, req)
	if err != nil {
		return outcome, err
	}
	if outcome != nil && m.filter != nil {
		if ferr := m.filter(outcome); ferr != nil {
			return nil, ferr
		}
	}
	return outcome, nil
}
