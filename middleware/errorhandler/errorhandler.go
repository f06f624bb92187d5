// Package errorhandler translates and absorbs errors at the edge of the
// middleware chain.
package errorhandler

import (
	"context"
	"fmt"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
)

// HandlerFunc maps one error to another. Returning nil swallows the error;
// the outcome from downstream (possibly nil) is passed through.
type HandlerFunc func(error) error

// ErrorHandler applies a translation function to downstream errors.
type ErrorHandler struct {
	handle HandlerFunc
}

// New creates an error handling middleware.
func New(handle HandlerFunc) *ErrorHandler {
	return &ErrorHandler{handle: handle}
}

func (m *ErrorHandler) Name() string { return "error_handler" }

func (m *ErrorHandler) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	outcome, err := next(ctx, req)
	if err != nil && m.handle != nil {
		return outcome, m.handle(err)
	}
	return outcome, err
}

// Recovery converts a downstream panic into an internal error so one bad
// consultation cannot take down the dispatcher.
type Recovery struct{}

// NewRecovery creates a panic recovery middleware.
func NewRecovery() *Recovery {
	return &Recovery{}
}

func (m *Recovery) Name() string { return "recovery" }

func (m *Recovery) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (outcome *consult.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("%w: panic during consultation: %v", apperrors.ErrInternal, r)
		}
	}()
	return next(ctx, req)
}
