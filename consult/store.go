package consult

import "context"

// RunStore persists consultation runs and their pass records. The orchestrator
// commits incrementally after every pass transition so partial state survives
// a crash. Implementations live under the store package.
type RunStore interface {
	// SaveRun inserts or updates a run (without its passes).
	SaveRun(ctx context.Context, run *ConsultationRun) error

	// SavePass inserts or updates one pass record, keyed by (RunID, Number).
	SavePass(ctx context.Context, pass *PassRecord) error

	// GetRun loads a run with its pass records.
	GetRun(ctx context.Context, id string) (*ConsultationRun, error)

	// DeleteRun removes a run and cascades to its pass records.
	DeleteRun(ctx context.Context, id string) error

	// SaveComparison writes a comparison record.
	SaveComparison(ctx context.Context, rec *ComparisonRecord) error

	// AnnotateComparison attaches human review fields to an existing record.
	AnnotateComparison(ctx context.Context, id, reviewedBy, notes string) error

	// GetComparison loads a comparison record.
	GetComparison(ctx context.Context, id string) (*ComparisonRecord, error)
}

// BriefCache caches completed briefs by case ID. Cache failures must degrade
// silently; a consultation never fails because of the cache.
type BriefCache interface {
	Get(ctx context.Context, caseID string) (*Brief, bool)
	Set(ctx context.Context, caseID string, brief *Brief) error
}
