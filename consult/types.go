// Package consult implements the consultation engine: the multi-pass
// orchestrator, the single-pass fallback pipeline, the router between them,
// and the comparison runner.
package consult

import (
	"time"
)

// ConsultationRequest is the immutable input for one consultation attempt.
type ConsultationRequest struct {
	CaseID      string `json:"case_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}

// PassNumber identifies one stage of the multi-pass pipeline.
type PassNumber int

const (
	PassAcceptance PassNumber = iota
	PassDraft
	PassCritique
	PassRefine
	PassStructure

	passCount = 5
)

var passNames = [passCount]string{"acceptance", "draft", "critique", "refine", "structure"}

// Name returns the stable pass name used in records, logs, and metrics.
func (n PassNumber) Name() string {
	if n < 0 || int(n) >= passCount {
		return "unknown"
	}
	return passNames[n]
}

// PassStatus is the execution status of one pass attempt.
type PassStatus string

const (
	PassPending PassStatus = "pending"
	PassRunning PassStatus = "running"
	PassSuccess PassStatus = "success"
	PassError   PassStatus = "error"
	PassTimeout PassStatus = "timeout"
	PassSkipped PassStatus = "skipped"
)

// PassRecord is the audit record for one executed pass. Retried attempts
// overwrite the same record's fields, incrementing RetryCount.
type PassRecord struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Number     PassNumber    `json:"number"`
	Name       string        `json:"name"`
	Status     PassStatus    `json:"status"`
	InputText  string        `json:"input_text,omitempty"`
	OutputText string        `json:"output_text,omitempty"`
	OutputJSON string        `json:"output_json,omitempty"`
	RetryCount int           `json:"retry_count"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// RunStatus is the overall status of a consultation run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunRejected   RunStatus = "rejected"
)

// ConsultationRun aggregates the pass records for one attempt.
type ConsultationRun struct {
	ID              string              `json:"id"`
	Request         ConsultationRequest `json:"request"`
	Status          RunStatus           `json:"status"`
	Passes          []*PassRecord       `json:"passes,omitempty"`
	PassesCompleted int                 `json:"passes_completed"`
	// FailedAtPass is the pass that terminated the run, -1 when not failed.
	FailedAtPass   int           `json:"failed_at_pass"`
	Result         *Brief        `json:"result,omitempty"`
	Confidence     float64       `json:"confidence"`
	ScholarFlag    bool          `json:"scholar_flag"`
	FallbackUsed   bool          `json:"fallback_used"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	TotalDuration  time.Duration `json:"total_duration"`
	TotalTokens    int           `json:"total_tokens"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Pass returns the record for the given pass number, or nil.
func (r *ConsultationRun) Pass(n PassNumber) *PassRecord {
	for _, p := range r.Passes {
		if p.Number == n {
			return p
		}
	}
	return nil
}

// Brief is the structured consulting brief both pipelines produce.
type Brief struct {
	ExecutiveSummary  string            `json:"executive_summary"`
	Options           []BriefOption     `json:"options"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	ReflectionPrompts []string          `json:"reflection_prompts"`
	Sources           []SourceRef       `json:"sources"`
	Confidence        float64           `json:"confidence"`
	ScholarFlag       bool              `json:"scholar_flag"`
}

// BriefOption is one of the exactly three options a brief presents.
type BriefOption struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	Sources     []string `json:"sources"`
}

// RecommendedAction points at one option (1-3) with concrete steps.
type RecommendedAction struct {
	Option  int      `json:"option"`
	Steps   []string `json:"steps"`
	Sources []string `json:"sources"`
}

// SourceRef cites one retrieved passage by canonical ID.
type SourceRef struct {
	CanonicalID string  `json:"canonical_id"`
	Paraphrase  string  `json:"paraphrase,omitempty"`
	Relevance   float64 `json:"relevance"`
}

// RejectionCategory classifies why the acceptance gate rejected an input.
type RejectionCategory string

const (
	RejectNotDilemma    RejectionCategory = "NOT_DILEMMA"
	RejectUnethicalCore RejectionCategory = "UNETHICAL_CORE"
	RejectTooVague      RejectionCategory = "TOO_VAGUE"
	RejectHarmfulIntent RejectionCategory = "HARMFUL_INTENT"
	RejectFormatError   RejectionCategory = "FORMAT_ERROR"
)

// AcceptanceResult is the outcome of the acceptance gate.
type AcceptanceResult struct {
	Accepted    bool              `json:"accepted"`
	Category    RejectionCategory `json:"category,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	StageFailed string            `json:"stage_failed,omitempty"`
}

// PassResult is the explicit outcome of one pass execution. Errors are
// reserved for unexpected conditions; ordinary pass failures travel here.
type PassResult struct {
	Status     PassStatus
	OutputText string
	Brief      *Brief // structure pass only
	Duration   time.Duration
	TokensUsed int
	Retries    int
	Err        error
}

// Succeeded reports whether the pass produced usable output.
func (r PassResult) Succeeded() bool {
	return r.Status == PassSuccess
}

// ComparisonRecord pairs one multi-pass outcome with one single-pass outcome
// for the same request. Immutable once written except for review annotations.
type ComparisonRecord struct {
	ID                   string        `json:"id"`
	CaseID               string        `json:"case_id"`
	MultipassRunID       string        `json:"multipass_run_id,omitempty"`
	MultipassSuccess     bool          `json:"multipass_success"`
	SinglepassSuccess    bool          `json:"singlepass_success"`
	MultipassConfidence  float64       `json:"multipass_confidence"`
	SinglepassConfidence float64       `json:"singlepass_confidence"`
	MultipassDuration    time.Duration `json:"multipass_duration"`
	SinglepassDuration   time.Duration `json:"singlepass_duration"`
	ConfidenceDiff       float64       `json:"confidence_diff"`
	DurationDiff         time.Duration `json:"duration_diff"`
	PrimaryPipeline      string        `json:"primary_pipeline"`
	ReturnedPipeline     string        `json:"returned_pipeline"`
	ReviewedBy           string        `json:"reviewed_by,omitempty"`
	ReviewNotes          string        `json:"review_notes,omitempty"`
	ReviewedAt           *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}
