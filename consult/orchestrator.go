package consult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/graph"
	"github.com/geetanjaliapp/geetanjali-sub001/llm"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/metrics"
	"github.com/geetanjaliapp/geetanjali-sub001/pkg/telemetry"
	"github.com/geetanjaliapp/geetanjali-sub001/retrieval"
)

// Clients assigns an LLM client per pass. Default backs any pass without an
// explicit client; different passes may run on different providers.
type Clients struct {
	Default    llm.Client
	Acceptance llm.Client
	Draft      llm.Client
	Critique   llm.Client
	Refine     llm.Client
	Structure  llm.Client
}

// For returns the client for the given pass, falling back to Default.
func (c *Clients) For(n PassNumber) llm.Client {
	var chosen llm.Client
	switch n {
	case PassAcceptance:
		chosen = c.Acceptance
	case PassDraft:
		chosen = c.Draft
	case PassCritique:
		chosen = c.Critique
	case PassRefine:
		chosen = c.Refine
	case PassStructure:
		chosen = c.Structure
	}
	if chosen == nil {
		chosen = c.Default
	}
	return chosen
}

// Outcome is what a pipeline hands back to the router. A non-nil Brief with a
// rejected run means the input was declined; a non-nil Brief on a failed run
// means it was reconstructed from the last good pass.
type Outcome struct {
	Run             *ConsultationRun
	Brief           *Brief
	PolicyViolation bool
	Category        RejectionCategory
}

// Orchestrator drives the five-pass consultation pipeline over a flow graph,
// persisting every pass transition as it happens.
type Orchestrator struct {
	clients   *Clients
	retriever retrieval.Retriever
	store     RunStore
	cfg       *Config
	recorder  metrics.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	flow      *graph.Graph
}

// NewOrchestrator builds the multi-pass pipeline. clients.Default, retriever,
// and store are required.
func NewOrchestrator(clients *Clients, retriever retrieval.Retriever, store RunStore, cfg *Config, opts ...OrchestratorOption) (*Orchestrator, error) {
	if clients == nil || clients.Default == nil {
		return nil, fmt.Errorf("orchestrator: %w: default client is required", apperrors.ErrInvalidInput)
	}
	if retriever == nil {
		return nil, fmt.Errorf("orchestrator: %w: retriever is required", apperrors.ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("orchestrator: %w: run store is required", apperrors.ErrInvalidInput)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &Orchestrator{
		clients:   clients,
		retriever: retriever,
		store:     store,
		cfg:       cfg,
		recorder:  metrics.Nop{},
		logger:    logging.WithComponent("orchestrator"),
		tracer:    telemetry.Tracer("consult/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.flow = o.buildFlow()
	return o, nil
}

// OrchestratorOption customises optional orchestrator collaborators.
type OrchestratorOption func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// State keys shared between flow nodes.
const (
	stateRequest    = "request"
	stateRun        = "run"
	stateAcceptance = "acceptance"
	statePassages   = "passages"
	stateDraft      = "draft"
	stateCritique   = "critique"
	stateRefined    = "refined"
	stateBrief      = "brief"
)

// passError tags a node failure with the pass it happened in so the caller
// can tell where the pipeline stopped.
type passError struct {
	pass PassNumber
	err  error
}

func (e *passError) Error() string {
	return fmt.Sprintf("pass %d (%s): %v", e.pass, e.pass.Name(), e.err)
}

func (e *passError) Unwrap() error { return e.err }

func (o *Orchestrator) buildFlow() *graph.Graph {
	b := graph.NewBuilder()
	b.AddNode("acceptance", graph.NodeTypeStart, o.nodeAcceptance)
	b.AddConditionNode("route", o.routeAcceptance, map[string]string{
		"accepted": "retrieve",
		"rejected": "done",
	})
	b.AddNode("retrieve", graph.NodeTypeCustom, o.nodeRetrieve)
	b.AddNode("draft", graph.NodeTypeLLM, o.nodeDraft)
	b.AddNode("critique", graph.NodeTypeLLM, o.nodeCritique)
	b.AddNode("refine", graph.NodeTypeLLM, o.nodeRefine)
	b.AddNode("structure", graph.NodeTypeLLM, o.nodeStructure)
	b.AddNode("done", graph.NodeTypeEnd, func(_ context.Context, s graph.State) (graph.State, error) {
		return s, nil
	})
	b.AddEdge("acceptance", "route")
	b.AddEdge("retrieve", "draft")
	b.AddEdge("draft", "critique")
	b.AddEdge("critique", "refine")
	b.AddEdge("refine", "structure")
	b.AddEdge("structure", "done")
	return b.Build()
}

// Execute runs the full pipeline for one request. It returns an Outcome in
// every case except hard pipeline failure, where the error describes the
// failing pass and the Outcome still carries the failed run for inspection.
func (o *Orchestrator) Execute(ctx context.Context, req *ConsultationRequest) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "consult.multipass",
		trace.WithAttributes(attribute.String("case_id", req.CaseID)))
	var execErr error
	defer func() { telemetry.End(span, execErr) }()

	run := &ConsultationRun{
		ID:           uuid.NewString(),
		Request:      *req,
		Status:       RunQueued,
		FailedAtPass: -1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	o.saveRun(ctx, run)

	run.Status = RunInProgress
	o.saveRun(ctx, run)

	start := time.Now()
	state := graph.State{
		stateRequest: req,
		stateRun:     run,
	}
	finalState, err := o.flow.Execute(ctx, state)
	run.TotalDuration = time.Since(start)
	run.UpdatedAt = time.Now()

	if err != nil {
		execErr = err
		return o.finishFailed(ctx, run, finalState, err)
	}

	if acc, ok := finalState[stateAcceptance].(*AcceptanceResult); ok && !acc.Accepted {
		return o.finishRejected(ctx, run, acc)
	}

	brief := finalState[stateBrief].(*Brief)
	passages, _ := finalState[statePassages].([]retrieval.Passage)
	FinalizeBrief(brief, passageIDs(passages), o.cfg)

	run.Status = RunCompleted
	run.Result = brief
	run.Confidence = brief.Confidence
	run.ScholarFlag = brief.ScholarFlag
	o.saveRun(ctx, run)
	o.recorder.ObserveRun(PipelineMultipass, string(RunCompleted), brief.Confidence, run.TotalDuration)
	o.logger.Info("consultation completed",
		"run_id", run.ID, "case_id", req.CaseID,
		"passes_completed", run.PassesCompleted,
		"confidence", brief.Confidence,
		"scholar_flag", brief.ScholarFlag,
		"duration", run.TotalDuration)
	return &Outcome{Run: run, Brief: brief}, nil
}

func (o *Orchestrator) finishRejected(ctx context.Context, run *ConsultationRun, acc *AcceptanceResult) (*Outcome, error) {
	run.Status = RunRejected
	run.Confidence = 0
	run.ScholarFlag = true
	brief := RejectionBrief(ctx, o.clients.For(PassAcceptance), &run.Request, acc, o.cfg, o.logger)
	run.Result = brief
	o.saveRun(ctx, run)
	o.recorder.IncRejection(string(acc.Category))
	o.recorder.ObserveRun(PipelineMultipass, string(RunRejected), -1, run.TotalDuration)
	o.logger.Info("consultation rejected",
		"run_id", run.ID, "case_id", run.Request.CaseID,
		"category", acc.Category, "stage", acc.StageFailed)
	return &Outcome{
		Run:             run,
		Brief:           brief,
		PolicyViolation: true,
		Category:        acc.Category,
	}, nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, run *ConsultationRun, state graph.State, err error) (*Outcome, error) {
	run.Status = RunFailed

	var pe *passError
	if errors.As(err, &pe) {
		run.FailedAtPass = int(pe.pass)
	}
	if errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: %v", apperrors.ErrRunAbandoned, err)
	}

	// When structuring was the only casualty, the refined counsel is still
	// sound prose; wrap it into a degraded brief rather than discarding it.
	if pe != nil && pe.pass == PassStructure {
		if refined, ok := state[stateRefined].(string); ok && refined != "" {
			brief := o.reconstructBrief(state, refined)
			run.Result = brief
			run.Confidence = brief.Confidence
			run.ScholarFlag = true
			run.FallbackUsed = true
			run.FallbackReason = "pass4_reconstruction"
			o.saveRun(ctx, run)
			o.recorder.IncFallback("pass4_reconstruction")
			o.recorder.ObserveRun(PipelineMultipass, string(RunFailed), brief.Confidence, run.TotalDuration)
			o.logger.Warn("structure pass failed, reconstructed brief from refined counsel",
				"run_id", run.ID, "case_id", run.Request.CaseID, "error", pe.err)
			return &Outcome{Run: run, Brief: brief}, nil
		}
	}

	o.saveRun(ctx, run)
	o.recorder.ObserveRun(PipelineMultipass, string(RunFailed), -1, run.TotalDuration)
	o.logger.Error("consultation failed",
		"run_id", run.ID, "case_id", run.Request.CaseID,
		"failed_at_pass", run.FailedAtPass, "error", err)
	return &Outcome{Run: run}, fmt.Errorf("%w: %w", apperrors.ErrRunFailed, err)
}

// reconstructBrief wraps refined prose into the brief shape when the
// structure pass could not produce valid JSON. Always flagged for review.
func (o *Orchestrator) reconstructBrief(state graph.State, refined string) *Brief {
	brief := &Brief{
		ExecutiveSummary: refined,
		Options:          []BriefOption{},
		RecommendedAction: RecommendedAction{
			Option: 1,
			Steps:  []string{"Review the full counsel above with a qualified advisor."},
		},
		ReflectionPrompts: []string{
			"Which of your core values does this decision put in tension?",
			"Whose interests are you weighing least, and why?",
		},
		Sources:     []SourceRef{},
		Confidence:  o.cfg.ReconstructionConfidence,
		ScholarFlag: true,
	}
	if passages, ok := state[statePassages].([]retrieval.Passage); ok {
		for _, p := range passages {
			brief.Sources = append(brief.Sources, SourceRef{
				CanonicalID: p.CanonicalID,
				Relevance:   p.Relevance,
			})
		}
	}
	return brief
}

func (o *Orchestrator) nodeAcceptance(ctx context.Context, s graph.State) (graph.State, error) {
	req := s[stateRequest].(*ConsultationRequest)
	run := s[stateRun].(*ConsultationRun)

	record := o.startPass(ctx, run, PassAcceptance, req.Description)

	// The length gate runs before any model call.
	if result := CheckFormat(req, o.cfg); !result.Accepted {
		s[stateAcceptance] = result
		o.finishPass(ctx, run, record, &PassResult{Status: PassSuccess, OutputText: result.Reason})
		return s, nil
	}

	start := time.Now()
	var result *AcceptanceResult
	retries, err := retryPolicyFromConfig(o.cfg).Do(ctx, func(ctx context.Context) error {
		var classErr error
		result, classErr = ClassifyAcceptance(ctx, o.clients.For(PassAcceptance), req, o.cfg)
		return classErr
	})
	if err != nil {
		o.finishPass(ctx, run, record, &PassResult{
			Status:   passStatusForError(err),
			Duration: time.Since(start),
			Retries:  retries,
			Err:      err,
		})
		return s, &passError{pass: PassAcceptance, err: err}
	}
	s[stateAcceptance] = result
	o.finishPass(ctx, run, record, &PassResult{
		Status:     PassSuccess,
		OutputText: result.Reason,
		Duration:   time.Since(start),
		Retries:    retries,
	})
	return s, nil
}

func (o *Orchestrator) routeAcceptance(_ context.Context, s graph.State) (string, error) {
	result, ok := s[stateAcceptance].(*AcceptanceResult)
	if !ok {
		return "", fmt.Errorf("acceptance result missing from state")
	}
	if result.Accepted {
		return "accepted", nil
	}
	return "rejected", nil
}

func (o *Orchestrator) nodeRetrieve(ctx context.Context, s graph.State) (graph.State, error) {
	req := s[stateRequest].(*ConsultationRequest)
	passages, err := o.retriever.Search(ctx, req.Description, o.cfg.TopK)
	if err != nil {
		// Attributed to draft: retrieval exists to feed it.
		return s, &passError{pass: PassDraft, err: fmt.Errorf("retrieve passages: %w", err)}
	}
	o.logger.Debug("retrieved passages", "case_id", req.CaseID, "count", len(passages))
	s[statePassages] = passages
	return s, nil
}

func (o *Orchestrator) nodeDraft(ctx context.Context, s graph.State) (graph.State, error) {
	req := s[stateRequest].(*ConsultationRequest)
	run := s[stateRun].(*ConsultationRun)
	passages, _ := s[statePassages].([]retrieval.Passage)

	record := o.startPass(ctx, run, PassDraft, req.Description)
	result := RunDraft(ctx, o.clients.For(PassDraft), req, passages, o.cfg)
	o.finishPass(ctx, run, record, result)
	if !result.Succeeded() {
		return s, &passError{pass: PassDraft, err: result.Err}
	}
	s[stateDraft] = result.OutputText
	return s, nil
}

func (o *Orchestrator) nodeCritique(ctx context.Context, s graph.State) (graph.State, error) {
	req := s[stateRequest].(*ConsultationRequest)
	run := s[stateRun].(*ConsultationRun)
	draft := s[stateDraft].(string)

	record := o.startPass(ctx, run, PassCritique, draft)
	result := RunCritique(ctx, o.clients.For(PassCritique), req, draft, o.cfg)
	o.finishPass(ctx, run, record, result)
	switch result.Status {
	case PassSuccess:
		s[stateCritique] = result.OutputText
	case PassSkipped:
		o.logger.Warn("critique timed out, refining from draft alone",
			"run_id", run.ID, "case_id", req.CaseID)
		s[stateCritique] = ""
	default:
		return s, &passError{pass: PassCritique, err: result.Err}
	}
	return s, nil
}

func (o *Orchestrator) nodeRefine(ctx context.Context, s graph.State) (graph.State, error) {
	req := s[stateRequest].(*ConsultationRequest)
	run := s[stateRun].(*ConsultationRun)
	draft := s[stateDraft].(string)
	critique, _ := s[stateCritique].(string)
	passages, _ := s[statePassages].([]retrieval.Passage)

	record := o.startPass(ctx, run, PassRefine, draft)
	result := RunRefine(ctx, o.clients.For(PassRefine), req, draft, critique, passages, o.cfg)
	o.finishPass(ctx, run, record, result)
	if !result.Succeeded() {
		return s, &passError{pass: PassRefine, err: result.Err}
	}
	s[stateRefined] = result.OutputText
	return s, nil
}

func (o *Orchestrator) nodeStructure(ctx context.Context, s graph.State) (graph.State, error) {
	run := s[stateRun].(*ConsultationRun)
	refined := s[stateRefined].(string)

	record := o.startPass(ctx, run, PassStructure, refined)
	result := RunStructure(ctx, o.clients.For(PassStructure), refined, o.cfg)
	o.finishPass(ctx, run, record, result)
	if !result.Succeeded() {
		return s, &passError{pass: PassStructure, err: result.Err}
	}
	s[stateBrief] = result.Brief
	return s, nil
}

// startPass opens the audit record for a pass and persists it as running.
func (o *Orchestrator) startPass(ctx context.Context, run *ConsultationRun, n PassNumber, input string) *PassRecord {
	record := &PassRecord{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		Number:    n,
		Name:      n.Name(),
		Status:    PassRunning,
		InputText: input,
		StartedAt: time.Now(),
	}
	run.Passes = append(run.Passes, record)
	o.savePass(ctx, record)
	return record
}

// finishPass records the pass outcome, persists it, and updates run totals.
func (o *Orchestrator) finishPass(ctx context.Context, run *ConsultationRun, record *PassRecord, result *PassResult) {
	record.Status = result.Status
	record.OutputText = result.OutputText
	record.RetryCount = result.Retries
	record.TokensUsed = result.TokensUsed
	record.Duration = result.Duration
	record.FinishedAt = time.Now()
	if result.Brief != nil {
		if data, err := marshalBrief(result.Brief); err == nil {
			record.OutputJSON = data
		}
	}
	if result.Status == PassSuccess || result.Status == PassSkipped {
		run.PassesCompleted++
	}
	run.TotalTokens += result.TokensUsed
	run.UpdatedAt = time.Now()
	o.savePass(ctx, record)
	o.recorder.ObservePass(record.Name, string(record.Status), record.Duration)
}

func (o *Orchestrator) saveRun(ctx context.Context, run *ConsultationRun) {
	if err := o.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("save run failed", "run_id", run.ID, "status", run.Status, "error", err)
	}
}

func (o *Orchestrator) savePass(ctx context.Context, record *PassRecord) {
	if err := o.store.SavePass(context.WithoutCancel(ctx), record); err != nil {
		o.logger.Warn("save pass failed",
			"run_id", record.RunID, "pass", record.Name, "error", err)
	}
}

func passStatusForError(err error) PassStatus {
	if llm.IsTimeout(err) {
		return PassTimeout
	}
	return PassError
}

func passageIDs(passages []retrieval.Passage) []string {
	ids := make([]string, 0, len(passages))
	for _, p := range passages {
		ids = append(ids, p.CanonicalID)
	}
	return ids
}
