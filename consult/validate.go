package consult

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/corpus"
)

// requiredOptions is the exact number of options a brief must present.
const requiredOptions = 3

// ValidationIssue describes one structural defect found in a decoded brief.
type ValidationIssue struct {
	Field   string
	Message string
}

func (v ValidationIssue) String() string {
	return v.Field + ": " + v.Message
}

// sanitizeJSON strips markdown code fences and leading/trailing prose so
// that model output wrapped in ```json blocks still decodes.
func sanitizeJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	// Models occasionally prepend a sentence before the object.
	if !strings.HasPrefix(s, "{") {
		if i := strings.Index(s, "{"); i >= 0 {
			s = s[i:]
		}
	}
	if !strings.HasSuffix(s, "}") {
		if i := strings.LastIndex(s, "}"); i >= 0 {
			s = s[:i+1]
		}
	}
	return s
}

// DecodeBrief parses model output into a Brief. It tolerates code fences
// and surrounding prose but not malformed JSON.
func DecodeBrief(raw string) (*Brief, error) {
	cleaned := sanitizeJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("decode brief: empty output: %w", apperrors.ErrBriefInvalid)
	}
	var brief Brief
	if err := json.Unmarshal([]byte(cleaned), &brief); err != nil {
		return nil, fmt.Errorf("decode brief: %w: %v", apperrors.ErrBriefInvalid, err)
	}
	return &brief, nil
}

// ValidateBrief checks the structural invariants of a brief. The returned
// slice is empty when the brief is well-formed.
func ValidateBrief(b *Brief) []ValidationIssue {
	var issues []ValidationIssue
	if b == nil {
		return []ValidationIssue{{Field: "brief", Message: "nil"}}
	}
	if strings.TrimSpace(b.ExecutiveSummary) == "" {
		issues = append(issues, ValidationIssue{Field: "executive_summary", Message: "empty"})
	}
	if len(b.Options) != requiredOptions {
		issues = append(issues, ValidationIssue{
			Field:   "options",
			Message: fmt.Sprintf("expected %d options, got %d", requiredOptions, len(b.Options)),
		})
	}
	for i, opt := range b.Options {
		if strings.TrimSpace(opt.Title) == "" {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("options[%d].title", i),
				Message: "empty",
			})
		}
		if strings.TrimSpace(opt.Description) == "" {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("options[%d].description", i),
				Message: "empty",
			})
		}
	}
	// Option numbers the chosen option starting at 1.
	if b.RecommendedAction.Option < 1 || b.RecommendedAction.Option > len(b.Options) {
		issues = append(issues, ValidationIssue{
			Field:   "recommended_action.option",
			Message: fmt.Sprintf("%d outside 1-%d", b.RecommendedAction.Option, len(b.Options)),
		})
	}
	if len(b.RecommendedAction.Steps) == 0 {
		issues = append(issues, ValidationIssue{Field: "recommended_action.steps", Message: "empty"})
	}
	if len(b.ReflectionPrompts) == 0 {
		issues = append(issues, ValidationIssue{Field: "reflection_prompts", Message: "empty"})
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		issues = append(issues, ValidationIssue{
			Field:   "confidence",
			Message: fmt.Sprintf("%v outside [0,1]", b.Confidence),
		})
	}
	return issues
}

// RepairBrief fixes recoverable defects in place and reports whether the
// brief is usable afterwards. Missing summaries or a wrong option count are
// not recoverable; clamped confidence and filled defaults are.
func RepairBrief(b *Brief) bool {
	if b == nil {
		return false
	}
	if b.Confidence < 0 {
		b.Confidence = 0
	}
	if b.Confidence > 1 {
		b.Confidence = 1
	}
	if b.RecommendedAction.Option < 1 || b.RecommendedAction.Option > len(b.Options) {
		b.RecommendedAction.Option = 1
	}
	if len(b.RecommendedAction.Steps) == 0 && len(b.Options) > 0 {
		b.RecommendedAction.Steps = []string{
			"Review the options above and discuss them with the affected parties.",
		}
	}
	if len(b.ReflectionPrompts) == 0 {
		b.ReflectionPrompts = []string{
			"Which of your core values does this decision put in tension?",
			"Whose interests are you weighing least, and why?",
		}
	}
	if strings.TrimSpace(b.ExecutiveSummary) == "" {
		return false
	}
	if len(b.Options) != requiredOptions {
		return false
	}
	for _, opt := range b.Options {
		if strings.TrimSpace(opt.Title) == "" || strings.TrimSpace(opt.Description) == "" {
			return false
		}
	}
	return true
}

// FilterSources drops citations whose canonical IDs were not actually
// retrieved for this consultation, guarding against hallucinated verses.
// It rewrites sources on the brief, its options, and the recommended action.
func FilterSources(b *Brief, retrieved []string) {
	if b == nil {
		return
	}
	allowed := make(map[string]bool, len(retrieved))
	for _, id := range retrieved {
		allowed[id] = true
	}
	keep := func(refs []SourceRef) []SourceRef {
		out := refs[:0]
		for _, ref := range refs {
			if corpus.IsCanonicalID(ref.CanonicalID) && allowed[ref.CanonicalID] {
				out = append(out, ref)
			}
		}
		return out
	}
	keepIDs := func(ids []string) []string {
		out := ids[:0]
		for _, id := range ids {
			if corpus.IsCanonicalID(id) && allowed[id] {
				out = append(out, id)
			}
		}
		return out
	}
	b.Sources = keep(b.Sources)
	for i := range b.Options {
		b.Options[i].Sources = keepIDs(b.Options[i].Sources)
	}
	b.RecommendedAction.Sources = keepIDs(b.RecommendedAction.Sources)
}

func marshalBrief(b *Brief) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal brief: %w", err)
	}
	return string(data), nil
}

// FinalizeBrief applies source filtering and the scholar-review threshold.
func FinalizeBrief(b *Brief, retrieved []string, cfg *Config) {
	if b == nil {
		return
	}
	FilterSources(b, retrieved)
	if b.Confidence < cfg.ConfidenceThreshold {
		b.ScholarFlag = true
	}
}
