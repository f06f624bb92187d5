package consult

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestCheckFormat(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name        string
		description string
		wantOK      bool
	}{
		{"at lower bound", strings.Repeat("a", cfg.MinDescriptionLen), true},
		{"below lower bound", strings.Repeat("a", cfg.MinDescriptionLen-1), false},
		{"at upper bound", strings.Repeat("a", cfg.MaxDescriptionLen), true},
		{"above upper bound", strings.Repeat("a", cfg.MaxDescriptionLen+1), false},
		{"whitespace only", strings.Repeat(" ", 100), false},
		{"multibyte runes counted as characters", strings.Repeat("क", 60), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckFormat(&ConsultationRequest{CaseID: "c", Description: tt.description}, cfg)
			if result.Accepted != tt.wantOK {
				t.Errorf("accepted = %v, want %v", result.Accepted, tt.wantOK)
			}
			if !tt.wantOK && result.Category != RejectFormatError {
				t.Errorf("category = %s, want %s", result.Category, RejectFormatError)
			}
		})
	}
}

func TestClassifyAcceptance(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		wantAccepted bool
		wantCategory RejectionCategory
	}{
		{"accepted", `{"accepted": true}`, true, ""},
		{"not a dilemma", `{"accepted": false, "category": "NOT_DILEMMA", "reason": "recipe"}`, false, RejectNotDilemma},
		{"lowercase category", `{"accepted": false, "category": "too_vague"}`, false, RejectTooVague},
		{"unknown category defaults", `{"accepted": false, "category": "WEIRD"}`, false, RejectNotDilemma},
		{"fenced verdict", "```json\n{\"accepted\": false, \"category\": \"HARMFUL_INTENT\"}\n```", false, RejectHarmfulIntent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{queue: []stubCall{{text: tt.response}}}
			result, err := ClassifyAcceptance(context.Background(), client, testRequest(), testConfig())
			if err != nil {
				t.Fatalf("ClassifyAcceptance() error = %v", err)
			}
			if result.Accepted != tt.wantAccepted {
				t.Errorf("accepted = %v, want %v", result.Accepted, tt.wantAccepted)
			}
			if !tt.wantAccepted && result.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", result.Category, tt.wantCategory)
			}
		})
	}
}

func TestClassifyAcceptanceMalformedVerdict(t *testing.T) {
	client := &stubClient{queue: []stubCall{{text: "maybe?"}}}
	if _, err := ClassifyAcceptance(context.Background(), client, testRequest(), testConfig()); err == nil {
		t.Fatal("ClassifyAcceptance() error = nil, want parse failure")
	}
}

func TestStaticRejectionTextCoversAllCategories(t *testing.T) {
	categories := []RejectionCategory{
		RejectNotDilemma, RejectUnethicalCore, RejectTooVague,
		RejectHarmfulIntent, RejectFormatError,
	}
	for _, c := range categories {
		if StaticRejectionText(c) == "" {
			t.Errorf("no static decline note for %s", c)
		}
	}
}

func TestRejectionBriefShortPhrasingFallsBackToStatic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := &AcceptanceResult{Category: RejectTooVague, Reason: "no stakeholders named"}

	tests := []struct {
		name       string
		phrasing   string
		wantStatic bool
	}{
		{"curt decline", "Sorry, no.", true},
		{"whitespace padded short decline", "   Sorry, no.   \n", true},
		{"adequate decline", "Thank you for writing in. To offer real counsel we need the stakeholders, the values in tension, and what decision you face.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{queue: []stubCall{{text: tt.phrasing}}}
			brief := RejectionBrief(context.Background(), client, testRequest(), result, testConfig(), logger)
			gotStatic := brief.ExecutiveSummary == StaticRejectionText(RejectTooVague)
			if gotStatic != tt.wantStatic {
				t.Errorf("summary = %q, want static=%v", brief.ExecutiveSummary, tt.wantStatic)
			}
		})
	}
}

func TestRejectionBriefIsFullShapedAndFlagged(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := &AcceptanceResult{Category: RejectNotDilemma, Reason: "factual question"}
	brief := RejectionBrief(context.Background(), nil, testRequest(), result, testConfig(), logger)

	if !brief.ScholarFlag {
		t.Error("rejection brief must be scholar flagged")
	}
	if brief.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", brief.Confidence)
	}
	if brief.Options == nil || brief.ReflectionPrompts == nil || brief.Sources == nil {
		t.Error("rejection brief must carry empty slices, not nil")
	}
}
