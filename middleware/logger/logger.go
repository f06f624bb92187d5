// Package logger provides request and outcome logging middleware.
package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	"github.com/geetanjaliapp/geetanjali-sub001/middleware"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
)

// ConsultationLogger logs each dispatched consultation with its terminal
// status and duration.
type ConsultationLogger struct {
	logger *slog.Logger
}

// New creates a consultation logging middleware.
func New(l *slog.Logger) *ConsultationLogger {
	if l == nil {
		l = logging.WithComponent("consult")
	}
	return &ConsultationLogger{logger: l}
}

func (m *ConsultationLogger) Name() string { return "consultation_logger" }

func (m *ConsultationLogger) Execute(ctx context.Context, req *consult.ConsultationRequest, next middleware.Handler) (*consult.Outcome, error) {
	m.logger.Info("consultation received",
		"case_id", req.CaseID,
		"description_len", len(req.Description),
	)
	start := time.Now()
	outcome, err := next(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		m.logger.Error("consultation failed",
			"case_id", req.CaseID,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return outcome, err
	}

	attrs := []any{
		"case_id", req.CaseID,
		"duration_ms", elapsed.Milliseconds(),
	}
	if outcome.Run != nil {
		attrs = append(attrs, "status", string(outcome.Run.Status), "fallback_used", outcome.Run.FallbackUsed)
	}
	if outcome.Brief != nil {
		attrs = append(attrs, "confidence", outcome.Brief.Confidence)
	}
	if outcome.PolicyViolation {
		attrs = append(attrs, "rejection_category", string(outcome.Category))
	}
	m.logger.Info("consultation finished", attrs...)
	return outcome, nil
}
