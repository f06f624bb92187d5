package consult

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
)

func completedOutcome() *Outcome {
	return &Outcome{
		Run:   &ConsultationRun{ID: "run-1", Status: RunCompleted},
		Brief: &Brief{ExecutiveSummary: "counsel", Confidence: 0.8},
	}
}

func TestRouterMultipassDisabledNeverCallsMultipass(t *testing.T) {
	multi := &fixedPipeline{outcome: completedOutcome()}
	single := &fixedPipeline{outcome: completedOutcome()}
	cfg := testConfig()
	cfg.MultipassEnabled = false

	r, err := NewRouter(multi, single, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if _, err := r.Consult(context.Background(), testRequest()); err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if multi.callCount() != 0 {
		t.Errorf("multipass calls = %d, want 0", multi.callCount())
	}
	if single.callCount() != 1 {
		t.Errorf("singlepass calls = %d, want 1", single.callCount())
	}
}

func TestRouterFallbackOnMultipassFailure(t *testing.T) {
	failed := &Outcome{Run: &ConsultationRun{ID: "run-m", Status: RunFailed}}
	multi := &fixedPipeline{outcome: failed, err: fmt.Errorf("%w: draft exploded", apperrors.ErrRunFailed)}
	single := &fixedPipeline{outcome: completedOutcome()}
	cfg := testConfig()
	cfg.FallbackToSinglePass = true

	r, err := NewRouter(multi, single, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	outcome, err := r.Consult(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Consult() error = %v, want fallback success", err)
	}
	if single.callCount() != 1 {
		t.Errorf("singlepass calls = %d, want 1", single.callCount())
	}
	if !outcome.Run.FallbackUsed || outcome.Run.FallbackReason != "singlepass_fallback" {
		t.Errorf("fallback = %v/%q, want true/singlepass_fallback",
			outcome.Run.FallbackUsed, outcome.Run.FallbackReason)
	}
}

func TestRouterFallbackDisabledPropagatesError(t *testing.T) {
	wantErr := fmt.Errorf("%w: draft exploded", apperrors.ErrRunFailed)
	multi := &fixedPipeline{outcome: &Outcome{Run: &ConsultationRun{Status: RunFailed}}, err: wantErr}
	single := &fixedPipeline{outcome: completedOutcome()}
	cfg := testConfig()
	cfg.FallbackToSinglePass = false

	r, err := NewRouter(multi, single, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	_, err = r.Consult(context.Background(), testRequest())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Consult() error = %v, want the multipass error unchanged", err)
	}
	if single.callCount() != 0 {
		t.Errorf("singlepass calls = %d, want 0", single.callCount())
	}
}

func TestRouterNoFallbackOnAbandonedRun(t *testing.T) {
	multi := &fixedPipeline{
		outcome: &Outcome{Run: &ConsultationRun{Status: RunFailed}},
		err:     fmt.Errorf("%w: caller disconnected", apperrors.ErrRunAbandoned),
	}
	single := &fixedPipeline{outcome: completedOutcome()}
	cfg := testConfig()
	cfg.FallbackToSinglePass = true

	r, err := NewRouter(multi, single, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	_, err = r.Consult(context.Background(), testRequest())
	if !errors.Is(err, apperrors.ErrRunAbandoned) {
		t.Fatalf("Consult() error = %v, want ErrRunAbandoned", err)
	}
	if single.callCount() != 0 {
		t.Errorf("singlepass calls = %d, want 0: abandoned runs must not be rerouted", single.callCount())
	}
}

func TestRouterReturnsReconstructedResultWithoutFallback(t *testing.T) {
	reconstructed := &Outcome{
		Run: &ConsultationRun{
			Status:         RunFailed,
			FallbackUsed:   true,
			FallbackReason: "pass4_reconstruction",
		},
		Brief: &Brief{ExecutiveSummary: "refined counsel", Confidence: 0.4, ScholarFlag: true},
	}
	multi := &fixedPipeline{outcome: reconstructed}
	single := &fixedPipeline{outcome: completedOutcome()}
	cfg := testConfig()
	cfg.FallbackToSinglePass = true

	r, err := NewRouter(multi, single, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	outcome, err := r.Consult(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if single.callCount() != 0 {
		t.Errorf("singlepass calls = %d, want 0: reconstruction already produced a result", single.callCount())
	}
	if outcome.Brief.ExecutiveSummary != "refined counsel" {
		t.Errorf("brief = %q, want the reconstructed counsel", outcome.Brief.ExecutiveSummary)
	}
}

func TestRouterRequiresCaseID(t *testing.T) {
	r, err := NewRouter(&fixedPipeline{}, &fixedPipeline{}, testConfig())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if _, err := r.Consult(context.Background(), &ConsultationRequest{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Consult() error = %v, want ErrInvalidInput", err)
	}
}
