package consult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/metrics"
)

// Pipeline is the execution surface both pipelines share.
type Pipeline interface {
	Execute(ctx context.Context, req *ConsultationRequest) (*Outcome, error)
}

// Router picks a pipeline per request from configuration flags alone: the
// same flags always produce the same route. With fallback enabled, a
// multi-pass failure reruns the request through the single-pass pipeline;
// with it disabled, the failure propagates unchanged.
type Router struct {
	multipass  Pipeline
	singlepass Pipeline
	comparison *ComparisonRunner
	cfg        *Config
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewRouter builds the router. singlepass is required; multipass may be nil
// only when the multi-pass route is disabled.
func NewRouter(multipass, singlepass Pipeline, cfg *Config, opts ...RouterOption) (*Router, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if singlepass == nil {
		return nil, fmt.Errorf("router: %w: singlepass pipeline is required", apperrors.ErrInvalidInput)
	}
	if cfg.MultipassEnabled && multipass == nil {
		return nil, fmt.Errorf("router: %w: multipass pipeline is required when enabled", apperrors.ErrInvalidInput)
	}
	r := &Router{
		multipass:  multipass,
		singlepass: singlepass,
		cfg:        cfg,
		recorder:   metrics.Nop{},
		logger:     logging.WithComponent("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RouterOption customises optional router collaborators.
type RouterOption func(*Router)

// WithRouterRecorder sets the metrics recorder.
func WithRouterRecorder(rec metrics.Recorder) RouterOption {
	return func(r *Router) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithRouterLogger sets the router logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithComparisonRunner attaches sampled comparison execution.
func WithComparisonRunner(c *ComparisonRunner) RouterOption {
	return func(r *Router) {
		r.comparison = c
	}
}

// Consult routes one request to a pipeline and returns its outcome.
func (r *Router) Consult(ctx context.Context, req *ConsultationRequest) (*Outcome, error) {
	if req == nil || req.CaseID == "" {
		return nil, fmt.Errorf("router: %w: case id is required", apperrors.ErrInvalidInput)
	}

	if r.cfg.ComparisonEnabled && r.comparison != nil && r.comparison.Sample() {
		return r.comparison.Run(ctx, req)
	}

	if !r.cfg.MultipassEnabled {
		return r.singlepass.Execute(ctx, req)
	}

	outcome, err := r.multipass.Execute(ctx, req)
	if err == nil {
		return outcome, nil
	}
	if !r.cfg.FallbackToSinglePass {
		return outcome, err
	}
	// Cancellation is the caller's decision; never reroute an abandoned run.
	if errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrRunAbandoned) {
		return outcome, err
	}

	r.logger.Warn("multi-pass pipeline failed, falling back to single-pass",
		"case_id", req.CaseID, "error", err)
	r.recorder.IncFallback("singlepass_fallback")
	fallbackOutcome, fallbackErr := r.singlepass.Execute(ctx, req)
	if fallbackErr != nil {
		return fallbackOutcome, fmt.Errorf("fallback after multipass failure: %w", fallbackErr)
	}
	if fallbackOutcome.Run != nil {
		fallbackOutcome.Run.FallbackUsed = true
		fallbackOutcome.Run.FallbackReason = "singlepass_fallback"
	}
	return fallbackOutcome, nil
}
