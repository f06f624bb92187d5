package consult

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
)

func newTestSinglePass(t *testing.T, client *stubClient, ret *stubRetriever, store *stubStore) *SinglePass {
	t.Helper()
	p, err := NewSinglePass(client, ret, store, testConfig())
	if err != nil {
		t.Fatalf("NewSinglePass() error = %v", err)
	}
	return p
}

func TestSinglePassSuccess(t *testing.T) {
	client := &stubClient{queue: []stubCall{{text: validBriefJSON}}}
	store := &stubStore{}
	p := newTestSinglePass(t, client, &stubRetriever{passages: testPassages()}, store)

	outcome, err := p.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if outcome.Run.Status != RunCompleted {
		t.Errorf("status = %s, want %s", outcome.Run.Status, RunCompleted)
	}
	if outcome.Run.PassesCompleted != 1 {
		t.Errorf("passes completed = %d, want 1", outcome.Run.PassesCompleted)
	}
	if client.callCount() != 1 {
		t.Errorf("llm calls = %d, want exactly one", client.callCount())
	}
	if len(outcome.Brief.Options) != 3 {
		t.Errorf("options = %d, want 3", len(outcome.Brief.Options))
	}
	// Post-validation filters citations against the retrieved IDs.
	for _, src := range outcome.Brief.Sources {
		if src.CanonicalID == "BG_3_35" {
			t.Error("hallucinated source survived filtering")
		}
	}
}

func TestSinglePassPolicyViolation(t *testing.T) {
	client := &stubClient{queue: []stubCall{
		{text: `{"policy_violation": true, "category": "NOT_DILEMMA", "reason": "a recipe question"}`},
		{text: "Thanks for writing; this service counsels on leadership dilemmas."},
	}}
	store := &stubStore{}
	p := newTestSinglePass(t, client, &stubRetriever{passages: testPassages()}, store)

	outcome, err := p.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !outcome.PolicyViolation {
		t.Error("expected a policy violation outcome")
	}
	if outcome.Category != RejectNotDilemma {
		t.Errorf("category = %s, want %s", outcome.Category, RejectNotDilemma)
	}
	if outcome.Run.Status != RunRejected {
		t.Errorf("status = %s, want %s", outcome.Run.Status, RunRejected)
	}
	if !outcome.Brief.ScholarFlag || !outcome.Run.ScholarFlag {
		t.Errorf("scholar flags = brief:%v run:%v, want both true on rejection",
			outcome.Brief.ScholarFlag, outcome.Run.ScholarFlag)
	}
	if outcome.Run.Confidence != 0 {
		t.Errorf("run confidence = %v, want 0", outcome.Run.Confidence)
	}
}

func TestSinglePassFormatGate(t *testing.T) {
	client := &stubClient{}
	p := newTestSinglePass(t, client, &stubRetriever{passages: testPassages()}, &stubStore{})

	req := testRequest()
	req.Description = "too short"
	outcome, err := p.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if outcome.Category != RejectFormatError {
		t.Errorf("category = %s, want %s", outcome.Category, RejectFormatError)
	}
	if client.callCount() != 0 {
		t.Errorf("llm calls = %d, want 0", client.callCount())
	}
}

func TestSinglePassTransportFailure(t *testing.T) {
	client := &stubClient{queue: []stubCall{
		{err: fmt.Errorf("call: %w", apperrors.ErrLLMTransport)},
	}}
	p := newTestSinglePass(t, client, &stubRetriever{passages: testPassages()}, &stubStore{})

	outcome, err := p.Execute(context.Background(), testRequest())
	if !errors.Is(err, apperrors.ErrRunFailed) {
		t.Fatalf("Execute() error = %v, want ErrRunFailed", err)
	}
	if outcome.Run.Status != RunFailed {
		t.Errorf("status = %s, want %s", outcome.Run.Status, RunFailed)
	}
}

func TestSinglePassRetriesUndecodableOutput(t *testing.T) {
	client := &stubClient{queue: []stubCall{
		{text: "definitely not json"},
		{text: validBriefJSON},
	}}
	cfg := testConfig()
	cfg.MaxRetries = 1
	p, err := NewSinglePass(client, &stubRetriever{passages: testPassages()}, &stubStore{}, cfg)
	if err != nil {
		t.Fatalf("NewSinglePass() error = %v", err)
	}

	outcome, err := p.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if outcome.Run.Status != RunCompleted {
		t.Errorf("status = %s, want %s", outcome.Run.Status, RunCompleted)
	}
	if client.callCount() != 2 {
		t.Errorf("llm calls = %d, want 2", client.callCount())
	}
}
