package consult

import (
	"fmt"
	"strings"

	"github.com/geetanjaliapp/geetanjali-sub001/retrieval"
)

const acceptanceSystemPrompt = `You are a triage classifier for an ethics consultation service.
Decide whether the submitted case is a genuine leadership or ethical dilemma
suitable for reflective consultation. Respond with ONLY a JSON object:
{"accepted": true|false, "category": "", "reason": ""}
When rejecting, category must be one of:
NOT_DILEMMA, UNETHICAL_CORE, TOO_VAGUE, HARMFUL_INTENT.
Reject TOO_VAGUE when the description lacks enough detail to identify the
competing values. Reject HARMFUL_INTENT when the submitter seeks help doing
harm. Accept everything that describes a real tension between legitimate
obligations, even uncomfortable ones.`

const draftSystemPrompt = `You are an experienced leadership counselor drawing on a classical
wisdom corpus. Write a free-form first draft of counsel for the dilemma below.
Explore the tension honestly: name the competing duties, consider consequences
for every affected party, and ground your reasoning in the cited passages.
Cite passages by their canonical IDs exactly as given. Do not produce JSON;
write flowing prose. Aim for depth over polish.`

const critiqueSystemPrompt = `You are a rigorous reviewer of ethics counsel. Critique the draft
below for: unstated assumptions, missing stakeholder perspectives, citations
used out of context, advice that is vague or unactionable, and any place the
reasoning leans on one framework while ignoring others. Be specific and
reference the draft's own wording. Do not rewrite the draft; list the defects.`

const refineSystemPrompt = `You are an experienced leadership counselor. Revise the draft counsel
below, addressing every point in the critique. Keep citations to canonical
IDs that appear in the provided passages. Preserve what the critique did not
fault. The result should read as finished counsel in prose, not JSON.`

const structureSystemPrompt = `Convert the counsel below into a JSON consulting brief. Respond with
ONLY the JSON object, no prose, matching exactly this shape:
{
  "executive_summary": "...",
  "options": [
    {"title": "...", "description": "...", "pros": ["..."], "cons": ["..."], "sources": ["ID"]},
    {"title": "...", "description": "...", "pros": ["..."], "cons": ["..."], "sources": ["ID"]},
    {"title": "...", "description": "...", "pros": ["..."], "cons": ["..."], "sources": ["ID"]}
  ],
  "recommended_action": {"option": 1, "steps": ["..."], "sources": ["ID"]},
  "reflection_prompts": ["..."],
  "sources": [{"canonical_id": "ID", "paraphrase": "...", "relevance": 0.0}],
  "confidence": 0.0
}
There must be exactly three options, and "option" numbers the recommended
one from 1 to 3. Every canonical ID must come from the counsel's citations.
Set confidence between 0 and 1 reflecting how well the corpus grounds the
recommendation.`

const singlePassSystemPrompt = `You are an experienced leadership counselor drawing on a classical
wisdom corpus. First decide whether the case below is a genuine leadership or
ethical dilemma; if it is not, or is too vague or seeks help doing harm,
respond with ONLY:
{"policy_violation": true, "category": "NOT_DILEMMA|UNETHICAL_CORE|TOO_VAGUE|HARMFUL_INTENT", "reason": "..."}
Otherwise respond with ONLY a JSON consulting brief:
{
  "executive_summary": "...",
  "options": [exactly three of {"title","description","pros","cons","sources"}],
  "recommended_action": {"option": 1, "steps": ["..."], "sources": ["ID"]},
  "reflection_prompts": ["..."],
  "sources": [{"canonical_id": "ID", "paraphrase": "...", "relevance": 0.0}],
  "confidence": 0.0
}
"option" numbers the recommended option from 1 to 3. Cite only the
canonical IDs of the passages provided.`

const rejectionPhrasingSystemPrompt = `You write brief, respectful notes declining an ethics consultation.
Given the rejection category and reason, write 2-3 sentences to the submitter:
acknowledge what they shared, explain why the service cannot counsel on it,
and, where sensible, suggest what a resubmission would need. Plain prose only.`

// staticRejectionText is used when the phrasing call itself fails or the
// description is too short to echo safely.
var staticRejectionText = map[RejectionCategory]string{
	RejectNotDilemma: "This service offers counsel on leadership and ethical dilemmas. " +
		"Your submission does not describe a decision between competing obligations, " +
		"so we cannot prepare a brief for it.",
	RejectUnethicalCore: "The course of action at the center of this case is not one " +
		"this service can help plan or justify. We can only counsel on dilemmas where " +
		"each option is a legitimate choice.",
	RejectTooVague: "Your submission does not give us enough detail to identify the " +
		"competing values at stake. Please resubmit with the concrete situation, the " +
		"people affected, and the choices you are weighing.",
	RejectHarmfulIntent: "This service cannot assist with plans that aim to harm " +
		"others. We decline to prepare a brief for this submission.",
	RejectFormatError: "Your submission must be between 50 and 5000 characters so the " +
		"dilemma can be understood and counseled on. Please resubmit within that range.",
}

// StaticRejectionText returns the canned decline note for a category.
func StaticRejectionText(category RejectionCategory) string {
	if text, ok := staticRejectionText[category]; ok {
		return text
	}
	return staticRejectionText[RejectNotDilemma]
}

func formatPassages(passages []retrieval.Passage) string {
	var sb strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&sb, "[%s] %s\n\n", p.CanonicalID, strings.TrimSpace(p.Text))
	}
	return strings.TrimSpace(sb.String())
}

func formatCase(req *ConsultationRequest) string {
	var sb strings.Builder
	if req.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n\n", req.Title)
	}
	sb.WriteString(req.Description)
	return sb.String()
}

// BuildAcceptancePrompt asks the classifier whether the case is consultable.
func BuildAcceptancePrompt(req *ConsultationRequest) string {
	return "Case submission:\n\n" + formatCase(req)
}

// BuildDraftPrompt combines the case with its retrieved passages.
func BuildDraftPrompt(req *ConsultationRequest, passages []retrieval.Passage) string {
	var sb strings.Builder
	sb.WriteString("Case:\n\n")
	sb.WriteString(formatCase(req))
	sb.WriteString("\n\nRelevant passages:\n\n")
	sb.WriteString(formatPassages(passages))
	return sb.String()
}

// BuildCritiquePrompt presents the draft alongside the original case.
func BuildCritiquePrompt(req *ConsultationRequest, draft string) string {
	var sb strings.Builder
	sb.WriteString("Case:\n\n")
	sb.WriteString(formatCase(req))
	sb.WriteString("\n\nDraft counsel:\n\n")
	sb.WriteString(draft)
	return sb.String()
}

// BuildRefinePrompt hands the draft, the critique, and the passages to the
// reviser. When the critique was skipped it is presented as empty.
func BuildRefinePrompt(req *ConsultationRequest, draft, critique string, passages []retrieval.Passage) string {
	var sb strings.Builder
	sb.WriteString("Case:\n\n")
	sb.WriteString(formatCase(req))
	sb.WriteString("\n\nRelevant passages:\n\n")
	sb.WriteString(formatPassages(passages))
	sb.WriteString("\n\nDraft counsel:\n\n")
	sb.WriteString(draft)
	if strings.TrimSpace(critique) != "" {
		sb.WriteString("\n\nCritique:\n\n")
		sb.WriteString(critique)
	} else {
		sb.WriteString("\n\nCritique: (none; revise for clarity and grounding)")
	}
	return sb.String()
}

// BuildStructurePrompt asks for the machine-readable brief.
func BuildStructurePrompt(refined string) string {
	return "Counsel:\n\n" + refined
}

// BuildSinglePassPrompt is the one-shot equivalent of the full pipeline.
func BuildSinglePassPrompt(req *ConsultationRequest, passages []retrieval.Passage) string {
	return BuildDraftPrompt(req, passages)
}

// BuildRejectionPhrasingPrompt asks for a personalised decline note.
func BuildRejectionPhrasingPrompt(req *ConsultationRequest, category RejectionCategory, reason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Category: %s\nReason: %s\n\nSubmission:\n\n", category, reason)
	sb.WriteString(formatCase(req))
	return sb.String()
}
