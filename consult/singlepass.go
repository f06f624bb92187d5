package consult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/llm"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/metrics"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/telemetry"
	"github.com/geetanjaliapp/geetanjali-sub001/retrieval"
)

// SinglePass produces a brief with one retrieval and one model call. It is
// the fallback when the multi-pass pipeline fails and the baseline arm in
// comparison mode.
type SinglePass struct {
	client    llm.Client
	retriever retrieval.Retriever
	store     RunStore
	cfg       *Config
	recorder  metrics.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSinglePass builds the single-pass pipeline.
func NewSinglePass(client llm.Client, retriever retrieval.Retriever, store RunStore, cfg *Config, opts ...SinglePassOption) (*SinglePass, error) {
	if client == nil {
		return nil, fmt.Errorf("singlepass: %w: client is required", apperrors.ErrInvalidInput)
	}
	if retriever == nil {
		return nil, fmt.Errorf("singlepass: %w: retriever is required", apperrors.ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("singlepass: %w: run store is required", apperrors.ErrInvalidInput)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &SinglePass{
		client:    client,
		retriever: retriever,
		store:     store,
		cfg:       cfg,
		recorder:  metrics.Nop{},
		logger:    logging.WithComponent("singlepass"),
		tracer:    telemetry.Tracer("consult/singlepass"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SinglePassOption customises optional single-pass collaborators.
type SinglePassOption func(*SinglePass)

// WithSinglePassRecorder sets the metrics recorder.
func WithSinglePassRecorder(r metrics.Recorder) SinglePassOption {
	return func(p *SinglePass) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithSinglePassLogger sets the pipeline logger.
func WithSinglePassLogger(l *slog.Logger) SinglePassOption {
	return func(p *SinglePass) {
		if l != nil {
			p.logger = l
		}
	}
}

// singlePassVerdict is the policy-violation shape the one-shot prompt may
// return instead of a brief.
type singlePassVerdict struct {
	PolicyViolation bool   `json:"policy_violation"`
	Category        string `json:"category"`
	Reason          string `json:"reason"`
}

// Execute runs the one-shot pipeline. Rejections surface as a policy
// violation outcome, never as an error.
func (p *SinglePass) Execute(ctx context.Context, req *ConsultationRequest) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "consult.singlepass",
		trace.WithAttributes(attribute.String("case_id", req.CaseID)))
	var execErr error
	defer func() { telemetry.End(span, execErr) }()

	run := &ConsultationRun{
		ID:           uuid.NewString(),
		Request:      *req,
		Status:       RunInProgress,
		FailedAtPass: -1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	p.saveRun(ctx, run)
	start := time.Now()

	// The length gate runs here too; an oversized case is rejected without
	// spending a model call.
	if result := CheckFormat(req, p.cfg); !result.Accepted {
		run.TotalDuration = time.Since(start)
		return p.finishRejected(ctx, run, result), nil
	}

	passages, err := p.retriever.Search(ctx, req.Description, p.cfg.TopK)
	if err != nil {
		execErr = fmt.Errorf("retrieve passages: %w", err)
		return p.finishFailed(ctx, run, start, execErr)
	}

	policy := retryPolicyFromConfig(p.cfg)
	policy.Retryable = func(err error) bool {
		if llm.IsTransient(err) {
			return true
		}
		var decodeErr *briefDecodeError
		return errors.As(err, &decodeErr)
	}

	var verdict *singlePassVerdict
	var brief *Brief
	var tokens int
	retries, err := policy.Do(ctx, func(ctx context.Context) error {
		resp, callErr := p.client.Generate(ctx, &llm.Request{
			Prompt:       BuildSinglePassPrompt(req, passages),
			SystemPrompt: singlePassSystemPrompt,
			Temperature:  p.cfg.RefineTemperature,
			MaxTokens:    p.cfg.MaxTokens,
			Timeout:      p.cfg.Timeouts.Draft,
		})
		if callErr != nil {
			return callErr
		}
		tokens += resp.Usage.TotalTokens
		verdict, brief, callErr = p.decodeOutput(resp.Text)
		return callErr
	})
	run.TotalTokens = tokens
	run.TotalDuration = time.Since(start)
	run.UpdatedAt = time.Now()
	if err != nil {
		execErr = err
		p.logger.Error("single-pass call failed",
			"run_id", run.ID, "case_id", req.CaseID, "retries", retries, "error", err)
		return p.finishFailed(ctx, run, start, err)
	}

	if verdict != nil {
		result := &AcceptanceResult{
			Accepted:    false,
			Category:    parseRejectionCategory(verdict.Category),
			Reason:      verdict.Reason,
			StageFailed: "singlepass",
		}
		return p.finishRejected(ctx, run, result), nil
	}

	FinalizeBrief(brief, passageIDs(passages), p.cfg)
	run.Status = RunCompleted
	run.PassesCompleted = 1
	run.Result = brief
	run.Confidence = brief.Confidence
	run.ScholarFlag = brief.ScholarFlag
	p.saveRun(ctx, run)
	p.recorder.ObserveRun(PipelineSinglepass, string(RunCompleted), brief.Confidence, run.TotalDuration)
	p.logger.Info("single-pass consultation completed",
		"run_id", run.ID, "case_id", req.CaseID,
		"confidence", brief.Confidence, "duration", run.TotalDuration)
	return &Outcome{Run: run, Brief: brief}, nil
}

// decodeOutput distinguishes the policy-violation shape from a brief.
// Undecodable output is returned as an error so the retry policy can try
// again.
func (p *SinglePass) decodeOutput(raw string) (*singlePassVerdict, *Brief, error) {
	cleaned := sanitizeJSON(raw)
	var verdict singlePassVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err == nil && verdict.PolicyViolation {
		return &verdict, nil, nil
	}
	brief, err := DecodeBrief(raw)
	if err != nil {
		return nil, nil, &briefDecodeError{err: err}
	}
	if issues := ValidateBrief(brief); len(issues) > 0 {
		if !RepairBrief(brief) {
			return nil, nil, &briefDecodeError{err: fmt.Errorf("brief failed validation: %v", issues)}
		}
	}
	return nil, brief, nil
}

func (p *SinglePass) finishRejected(ctx context.Context, run *ConsultationRun, result *AcceptanceResult) *Outcome {
	run.Status = RunRejected
	run.Confidence = 0
	run.ScholarFlag = true
	run.UpdatedAt = time.Now()
	brief := RejectionBrief(ctx, p.client, &run.Request, result, p.cfg, p.logger)
	run.Result = brief
	p.saveRun(ctx, run)
	p.recorder.IncRejection(string(result.Category))
	p.recorder.ObserveRun(PipelineSinglepass, string(RunRejected), -1, run.TotalDuration)
	p.logger.Info("single-pass consultation rejected",
		"run_id", run.ID, "case_id", run.Request.CaseID, "category", result.Category)
	return &Outcome{
		Run:             run,
		Brief:           brief,
		PolicyViolation: true,
		Category:        result.Category,
	}
}

func (p *SinglePass) finishFailed(ctx context.Context, run *ConsultationRun, start time.Time, err error) (*Outcome, error) {
	run.Status = RunFailed
	run.TotalDuration = time.Since(start)
	run.UpdatedAt = time.Now()
	p.saveRun(ctx, run)
	p.recorder.ObserveRun(PipelineSinglepass, string(RunFailed), -1, run.TotalDuration)
	return &Outcome{Run: run}, fmt.Errorf("%w: %w", apperrors.ErrRunFailed, err)
}

func (p *SinglePass) saveRun(ctx context.Context, run *ConsultationRun) {
	if err := p.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("save run failed", "run_id", run.ID, "status", run.Status, "error", err)
	}
}
