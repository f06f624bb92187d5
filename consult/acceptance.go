package consult

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/llm"
)

// CheckFormat applies the length gate. It runs before any model call so
// oversized or empty submissions are rejected for free.
func CheckFormat(req *ConsultationRequest, cfg *Config) *AcceptanceResult {
	n := utf8.RuneCountInString(strings.TrimSpace(req.Description))
	if n < cfg.MinDescriptionLen || n > cfg.MaxDescriptionLen {
		return &AcceptanceResult{
			Accepted: false,
			Category: RejectFormatError,
			Reason: fmt.Sprintf("description is %d characters; must be between %d and %d",
				n, cfg.MinDescriptionLen, cfg.MaxDescriptionLen),
			StageFailed: "format",
		}
	}
	return &AcceptanceResult{Accepted: true}
}

type acceptanceVerdict struct {
	Accepted bool   `json:"accepted"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

func parseRejectionCategory(s string) RejectionCategory {
	switch RejectionCategory(strings.ToUpper(strings.TrimSpace(s))) {
	case RejectNotDilemma:
		return RejectNotDilemma
	case RejectUnethicalCore:
		return RejectUnethicalCore
	case RejectTooVague:
		return RejectTooVague
	case RejectHarmfulIntent:
		return RejectHarmfulIntent
	case RejectFormatError:
		return RejectFormatError
	default:
		return RejectNotDilemma
	}
}

// ClassifyAcceptance runs the model-backed triage. A malformed verdict is
// treated as an error so the caller can retry; an explicit rejection is not
// an error.
func ClassifyAcceptance(ctx context.Context, client llm.Client, req *ConsultationRequest, cfg *Config) (*AcceptanceResult, error) {
	resp, err := client.Generate(ctx, &llm.Request{
		Prompt:       BuildAcceptancePrompt(req),
		SystemPrompt: acceptanceSystemPrompt,
		Temperature:  cfg.AcceptanceTemperature,
		MaxTokens:    500,
		Timeout:      cfg.Timeouts.Acceptance,
	})
	if err != nil {
		return nil, fmt.Errorf("acceptance classification: %w", err)
	}
	var verdict acceptanceVerdict
	if err := json.Unmarshal([]byte(sanitizeJSON(resp.Text)), &verdict); err != nil {
		return nil, fmt.Errorf("acceptance verdict: %w: %v", apperrors.ErrInvalidInput, err)
	}
	if verdict.Accepted {
		return &AcceptanceResult{Accepted: true}, nil
	}
	return &AcceptanceResult{
		Accepted:    false,
		Category:    parseRejectionCategory(verdict.Category),
		Reason:      verdict.Reason,
		StageFailed: "classification",
	}, nil
}

// RejectionBrief builds the brief returned for a declined submission. The
// decline note is phrased by the model when possible; phrasing failures,
// near-empty submissions, and phrasings shorter than the minimum description
// length fall back to the static template. Rejections are always scholar
// flagged with zero confidence.
func RejectionBrief(ctx context.Context, client llm.Client, req *ConsultationRequest, result *AcceptanceResult, cfg *Config, logger *slog.Logger) *Brief {
	text := StaticRejectionText(result.Category)
	phrasable := client != nil &&
		result.Category != RejectFormatError &&
		utf8.RuneCountInString(strings.TrimSpace(req.Description)) >= cfg.MinDescriptionLen
	if phrasable {
		resp, err := client.Generate(ctx, &llm.Request{
			Prompt:       BuildRejectionPhrasingPrompt(req, result.Category, result.Reason),
			SystemPrompt: rejectionPhrasingSystemPrompt,
			Temperature:  0.3,
			MaxTokens:    300,
			Timeout:      cfg.Timeouts.Acceptance,
		})
		if err != nil {
			logger.Warn("rejection phrasing failed, using static text",
				"case_id", req.CaseID, "category", result.Category, "error", err)
		} else if trimmed := strings.TrimSpace(resp.Text); utf8.RuneCountInString(trimmed) >= cfg.MinDescriptionLen {
			text = trimmed
		}
	}
	return &Brief{
		ExecutiveSummary:  text,
		Options:           []BriefOption{},
		ReflectionPrompts: []string{},
		Sources:           []SourceRef{},
		Confidence:        0,
		ScholarFlag:       true,
	}
}
