// Package runner dispatches consultations with bounded concurrency and a
// read-through brief cache in front of the pipelines.
package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/metrics"
)

// Consulter is the routing surface the runner dispatches into.
type Consulter interface {
	Consult(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error)
}

// Runner bounds how many consultations execute at once. Each consultation
// runs on one worker; there is no shared mutable state between them beyond
// the metrics recorder and the cache.
type Runner struct {
	router   Consulter
	cache    consult.BriefCache
	recorder metrics.Recorder
	logger   *slog.Logger

	semaphore chan struct{}
}

// Option customises optional runner collaborators.
type Option func(*Runner)

// WithCache attaches a read-through brief cache.
func WithCache(cache consult.BriefCache) Option {
	return func(r *Runner) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner over the given router.
func New(router Consulter, maxConcurrency int, opts ...Option) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	r := &Runner{
		router:    router,
		recorder:  metrics.Nop{},
		logger:    logging.WithComponent("runner"),
		semaphore: make(chan struct{}, maxConcurrency),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one consultation, waiting for a worker slot first. A cached
// brief short-circuits the pipelines entirely.
func (r *Runner) Run(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
	if r.cache != nil {
		if brief, ok := r.cache.Get(ctx, req.CaseID); ok {
			r.logger.Debug("brief cache hit", "case_id", req.CaseID)
			return &consult.Outcome{Brief: brief}, nil
		}
	}

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.recorder.ActiveAdd(1)
	defer r.recorder.ActiveAdd(-1)

	outcome, err := r.router.Consult(ctx, req)
	if err != nil {
		return outcome, err
	}
	if r.cache != nil && outcome.Brief != nil && !outcome.PolicyViolation &&
		outcome.Run != nil && outcome.Run.Status == consult.RunCompleted {
		if cacheErr := r.cache.Set(ctx, req.CaseID, outcome.Brief); cacheErr != nil {
			r.logger.Warn("brief cache set failed", "case_id", req.CaseID, "error", cacheErr)
		}
	}
	return outcome, nil
}

// BatchResult pairs one request with its outcome.
type BatchResult struct {
	CaseID  string
	Outcome *consult.Outcome
	Err     error
}

// RunBatch executes a set of consultations concurrently, each bounded by the
// runner's worker limit. Results are returned in input order.
func (r *Runner) RunBatch(ctx context.Context, reqs []*consult.ConsultationRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *consult.ConsultationRequest) {
			defer wg.Done()
			outcome, err := r.Run(ctx, req)
			results[i] = BatchResult{CaseID: req.CaseID, Outcome: outcome, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}
