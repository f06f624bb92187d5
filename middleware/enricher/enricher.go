// Package enricher fills in request fields before dispatch.
package enricher

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
)

// EnricherFunc mutates a request in place.
type EnricherFunc func(*consult.ConsultationRequest) error

// RequestEnricher applies a sequence of enrichment functions to each
// request before it reaches the dispatcher.
type RequestEnricher struct {
	enrichers []EnricherFunc
}

// New creates a request enrichment middleware.
func New(enrichers ...EnricherFunc) *RequestEnricher {
	return &RequestEnricher{enrichers: enrichers}
}

func (m *RequestEnricher) Name() string { return "request_enricher" }

func (m *RequestEnricher) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	for _, enrich := range m.enrichers {
		if err := enrich(req); err != nil {
			return nil, err
		}
	}
	return next(ctx, req)
}

// AssignCaseID backfills a generated case ID when the caller omits one.
func AssignCaseID() EnricherFunc {
	return func(req *consult.ConsultationRequest) error {
		if strings.TrimSpace(req.CaseID) == "" {
			req.CaseID = uuid.NewString()
		}
		return nil
	}
}

// TrimFields strips surrounding whitespace from the text fields.
func TrimFields() EnricherFunc {
	return func(req *consult.ConsultationRequest) error {
		req.Title = strings.TrimSpace(req.Title)
		req.Description = strings.TrimSpace(req.Description)
		return nil
	}
}
