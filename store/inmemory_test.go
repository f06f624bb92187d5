package store

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

func sampleRun(id string) *consult.ConsultationRun {
	return &consult.ConsultationRun{
		ID: id,
		Request: consult.ConsultationRequest{
			CaseID:      "case-1",
			Description: "a dilemma description long enough to be plausible for a saved run",
		},
		Status:       consult.RunInProgress,
		FailedAtPass: -1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestInMemoryStoreRunLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	run := sampleRun("run-1")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	run.Status = consult.RunCompleted
	run.PassesCompleted = 5
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() update error = %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != consult.RunCompleted || got.PassesCompleted != 5 {
		t.Errorf("run = %s/%d, want completed/5", got.Status, got.PassesCompleted)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStorePassUpsertByNumber(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.SaveRun(ctx, sampleRun("run-1")); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	running := &consult.PassRecord{
		ID: "pass-1", RunID: "run-1", Number: consult.PassDraft,
		Name: "draft", Status: consult.PassRunning, StartedAt: time.Now(),
	}
	if err := s.SavePass(ctx, running); err != nil {
		t.Fatalf("SavePass() error = %v", err)
	}

	finished := *running
	finished.Status = consult.PassSuccess
	finished.OutputText = "draft counsel"
	if err := s.SavePass(ctx, &finished); err != nil {
		t.Fatalf("SavePass() update error = %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if len(got.Passes) != 1 {
		t.Fatalf("passes = %d, want 1: same pass number must overwrite", len(got.Passes))
	}
	if got.Passes[0].Status != consult.PassSuccess {
		t.Errorf("pass status = %s, want success", got.Passes[0].Status)
	}
}

func TestInMemoryStorePassesOrderedByNumber(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.SaveRun(ctx, sampleRun("run-1")); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	for _, n := range []consult.PassNumber{consult.PassStructure, consult.PassAcceptance, consult.PassDraft} {
		record := &consult.PassRecord{
			ID: "pass-" + n.Name(), RunID: "run-1", Number: n,
			Name: n.Name(), Status: consult.PassSuccess, StartedAt: time.Now(),
		}
		if err := s.SavePass(ctx, record); err != nil {
			t.Fatalf("SavePass(%s) error = %v", n.Name(), err)
		}
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	for i := 1; i < len(got.Passes); i++ {
		if got.Passes[i-1].Number > got.Passes[i].Number {
			t.Fatalf("passes out of order: %v before %v", got.Passes[i-1].Number, got.Passes[i].Number)
		}
	}
}

func TestInMemoryStorePassRequiresRun(t *testing.T) {
	s := NewInMemoryStore()
	err := s.SavePass(context.Background(), &consult.PassRecord{ID: "p", RunID: "ghost"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("SavePass() error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreDeleteCascades(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.SaveRun(ctx, sampleRun("run-1")); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	record := &consult.PassRecord{
		ID: "pass-1", RunID: "run-1", Number: consult.PassAcceptance,
		Name: "acceptance", Status: consult.PassSuccess, StartedAt: time.Now(),
	}
	if err := s.SavePass(ctx, record); err != nil {
		t.Fatalf("SavePass() error = %v", err)
	}

	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, err := s.GetRun(ctx, "run-1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound after delete", err)
	}
	// Re-creating the run must not resurrect old passes.
	if err := s.SaveRun(ctx, sampleRun("run-1")); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if len(got.Passes) != 0 {
		t.Errorf("passes = %d, want 0: delete must cascade", len(got.Passes))
	}
}

func TestInMemoryStoreComparisonAnnotation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	rec := &consult.ComparisonRecord{
		ID:               "cmp-1",
		CaseID:           "case-1",
		MultipassSuccess: true,
		PrimaryPipeline:  consult.PipelineMultipass,
		CreatedAt:        time.Now(),
	}
	if err := s.SaveComparison(ctx, rec); err != nil {
		t.Fatalf("SaveComparison() error = %v", err)
	}
	if err := s.AnnotateComparison(ctx, "cmp-1", "scholar-a", "multipass answer was deeper"); err != nil {
		t.Fatalf("AnnotateComparison() error = %v", err)
	}

	got, err := s.GetComparison(ctx, "cmp-1")
	if err != nil {
		t.Fatalf("GetComparison() error = %v", err)
	}
	if got.ReviewedBy != "scholar-a" || got.ReviewedAt == nil {
		t.Errorf("annotation = %q/%v, want reviewer and timestamp", got.ReviewedBy, got.ReviewedAt)
	}

	if err := s.AnnotateComparison(ctx, "missing", "x", "y"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("AnnotateComparison(missing) error = %v, want ErrNotFound", err)
	}
}
