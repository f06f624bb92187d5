package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

type recordingMiddleware struct {
	name  string
	trace *[]string
	fail  error
}

func (m *recordingMiddleware) Name() string { return m.name }

func (m *recordingMiddleware) Execute(ctx context.Context, req *consult.ConsultationRequest, next Handler) (*consult.Outcome, error) {
	*m.trace = append(*m.trace, m.name+":before")
	if m.fail != nil {
		return nil, m.fail
	}
	outcome, err := next(ctx, req)
	*m.trace = append(*m.trace, m.name+":after")
	return outcome, err
}

type stubConsulter struct {
	trace   *[]string
	outcome *consult.Outcome
}

func (c *stubConsulter) Consult(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
	*c.trace = append(*c.trace, "terminal")
	return c.outcome, nil
}

func TestChainExecutesInOrder(t *testing.T) {
	var trace []string
	want := &consult.Outcome{Brief: &consult.Brief{ExecutiveSummary: "counsel"}}

	chain := NewChain(
		&recordingMiddleware{name: "outer", trace: &trace},
	).Add(&recordingMiddleware{name: "inner", trace: &trace})

	outcome, err := chain.Wrap(&stubConsulter{trace: &trace, outcome: want}).
		Consult(context.Background(), &consult.ConsultationRequest{CaseID: "c"})
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if outcome != want {
		t.Error("outcome was not passed through the chain")
	}

	wantTrace := []string{"outer:before", "inner:before", "terminal", "inner:after", "outer:after"}
	if len(trace) != len(wantTrace) {
		t.Fatalf("trace = %v, want %v", trace, wantTrace)
	}
	for i := range wantTrace {
		if trace[i] != wantTrace[i] {
			t.Fatalf("trace = %v, want %v", trace, wantTrace)
		}
	}
}

func TestChainStopsOnMiddlewareError(t *testing.T) {
	var trace []string
	wantErr := errors.New("blocked")

	chain := NewChain(
		&recordingMiddleware{name: "gate", trace: &trace, fail: wantErr},
		&recordingMiddleware{name: "inner", trace: &trace},
	)

	_, err := chain.Wrap(&stubConsulter{trace: &trace}).
		Consult(context.Background(), &consult.ConsultationRequest{CaseID: "c"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Consult() error = %v, want %v", err, wantErr)
	}
	for _, step := range trace {
		if step == "terminal" || step == "inner:before" {
			t.Fatalf("chain continued past a failing middleware: %v", trace)
		}
	}
}

func TestEmptyChainCallsTerminal(t *testing.T) {
	var trace []string
	if _, err := NewChain().Wrap(&stubConsulter{trace: &trace}).
		Consult(context.Background(), &consult.ConsultationRequest{CaseID: "c"}); err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if len(trace) != 1 || trace[0] != "terminal" {
		t.Fatalf("trace = %v, want [terminal]", trace)
	}
}
