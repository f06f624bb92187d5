package consult

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/metrics"
)

// ComparisonRunner executes both pipelines for sampled requests to collect
// quality and latency data side by side. The two pipelines run in parallel;
// a failure in one never cancels the other, and the comparison record is
// written only after both finish.
type ComparisonRunner struct {
	multipass  Pipeline
	singlepass Pipeline
	store      RunStore
	cfg        *Config
	recorder   metrics.Recorder
	logger     *slog.Logger
	sampleFn   func() bool
}

// NewComparisonRunner builds the runner. The default sampler draws against
// the configured sample rate.
func NewComparisonRunner(multipass, singlepass Pipeline, store RunStore, cfg *Config, opts ...ComparisonOption) *ComparisonRunner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &ComparisonRunner{
		multipass:  multipass,
		singlepass: singlepass,
		store:      store,
		cfg:        cfg,
		recorder:   metrics.Nop{},
		logger:     logging.WithComponent("comparison"),
	}
	c.sampleFn = func() bool {
		return rand.Float64() < c.cfg.ComparisonSampleRate
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComparisonOption customises optional comparison collaborators.
type ComparisonOption func(*ComparisonRunner)

// WithComparisonRecorder sets the metrics recorder.
func WithComparisonRecorder(r metrics.Recorder) ComparisonOption {
	return func(c *ComparisonRunner) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithComparisonLogger sets the runner logger.
func WithComparisonLogger(l *slog.Logger) ComparisonOption {
	return func(c *ComparisonRunner) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSampler replaces the probabilistic sampler; tests use this to force
// deterministic sampling decisions.
func WithSampler(fn func() bool) ComparisonOption {
	return func(c *ComparisonRunner) {
		if fn != nil {
			c.sampleFn = fn
		}
	}
}

// Sample reports whether the next request should run in comparison mode.
func (c *ComparisonRunner) Sample() bool {
	return c.sampleFn()
}

type pipelineResult struct {
	outcome *Outcome
	err     error
}

func (r pipelineResult) succeeded() bool {
	return r.err == nil && r.outcome != nil && r.outcome.Brief != nil
}

func (r pipelineResult) confidence() float64 {
	if r.outcome != nil && r.outcome.Brief != nil {
		return r.outcome.Brief.Confidence
	}
	return 0
}

func (r pipelineResult) duration() time.Duration {
	if r.outcome != nil && r.outcome.Run != nil {
		return r.outcome.Run.TotalDuration
	}
	return 0
}

// Run executes both pipelines, persists the comparison record, and returns
// the configured primary's result, crossing over to the other pipeline when
// the primary produced nothing usable.
func (c *ComparisonRunner) Run(ctx context.Context, req *ConsultationRequest) (*Outcome, error) {
	var multi, single pipelineResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		multi.outcome, multi.err = c.multipass.Execute(ctx, req)
	}()
	go func() {
		defer wg.Done()
		single.outcome, single.err = c.singlepass.Execute(ctx, req)
	}()
	wg.Wait()

	rec := &ComparisonRecord{
		ID:                   uuid.NewString(),
		CaseID:               req.CaseID,
		MultipassSuccess:     multi.succeeded(),
		SinglepassSuccess:    single.succeeded(),
		MultipassConfidence:  multi.confidence(),
		SinglepassConfidence: single.confidence(),
		MultipassDuration:    multi.duration(),
		SinglepassDuration:   single.duration(),
		PrimaryPipeline:      c.cfg.PrimaryPipeline,
		CreatedAt:            time.Now(),
	}
	if multi.outcome != nil && multi.outcome.Run != nil {
		rec.MultipassRunID = multi.outcome.Run.ID
	}
	rec.ConfidenceDiff = rec.MultipassConfidence - rec.SinglepassConfidence
	rec.DurationDiff = rec.MultipassDuration - rec.SinglepassDuration

	primary, secondary := multi, single
	primaryName, secondaryName := PipelineMultipass, PipelineSinglepass
	if c.cfg.PrimaryPipeline == PipelineSinglepass {
		primary, secondary = single, multi
		primaryName, secondaryName = PipelineSinglepass, PipelineMultipass
	}

	var returned *Outcome
	switch {
	case primary.succeeded():
		rec.ReturnedPipeline = primaryName
		returned = primary.outcome
	case secondary.succeeded():
		rec.ReturnedPipeline = secondaryName
		returned = secondary.outcome
		c.recorder.IncFallback("comparison_crossover")
		c.logger.Warn("comparison primary failed, returning secondary",
			"case_id", req.CaseID, "primary", primaryName, "error", primary.err)
	default:
		rec.ReturnedPipeline = ""
		returned = c.degradedOutcome(req)
		c.logger.Error("both comparison pipelines failed",
			"case_id", req.CaseID,
			"multipass_error", multi.err, "singlepass_error", single.err)
	}

	if err := c.store.SaveComparison(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("save comparison record failed",
			"comparison_id", rec.ID, "case_id", req.CaseID, "error", err)
	}
	return returned, nil
}

// degradedOutcome is the minimal result returned when neither pipeline
// produced a usable brief.
func (c *ComparisonRunner) degradedOutcome(req *ConsultationRequest) *Outcome {
	brief := &Brief{
		ExecutiveSummary: "We were unable to prepare a consulting brief for this case. " +
			"A scholar will review the submission and follow up.",
		Confidence:  0,
		ScholarFlag: true,
	}
	return &Outcome{
		Run: &ConsultationRun{
			ID:          uuid.NewString(),
			Request:     *req,
			Status:      RunFailed,
			Result:      brief,
			ScholarFlag: true,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		},
		Brief: brief,
	}
}
