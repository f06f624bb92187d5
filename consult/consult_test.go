package consult

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/llm"
	"github.com/geetanjaliapp/geetanjali-sub001/retrieval"
)

// stubCall is one scripted LLM response.
type stubCall struct {
	text string
	err  error
}

// stubClient returns scripted responses in order. When the script runs out
// it keeps returning the last entry.
type stubClient struct {
	mu    sync.Mutex
	calls []*llm.Request
	queue []stubCall
}

func (c *stubClient) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if len(c.queue) == 0 {
		return &llm.Response{Text: "ok", Model: "stub"}, nil
	}
	call := c.queue[0]
	if len(c.queue) > 1 {
		c.queue = c.queue[1:]
	}
	if call.err != nil {
		return nil, call.err
	}
	return &llm.Response{
		Text:  call.text,
		Model: "stub",
		Usage: llm.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
	}, nil
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// stubRetriever returns fixed passages.
type stubRetriever struct {
	passages []retrieval.Passage
	err      error
}

func (r *stubRetriever) Search(context.Context, string, int) ([]retrieval.Passage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.passages, nil
}

// stubStore records every persistence call.
type stubStore struct {
	mu          sync.Mutex
	runSaves    []ConsultationRun
	passSaves   []PassRecord
	comparisons []ComparisonRecord
}

func (s *stubStore) SaveRun(_ context.Context, run *ConsultationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runSaves = append(s.runSaves, *run)
	return nil
}

func (s *stubStore) SavePass(_ context.Context, pass *PassRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passSaves = append(s.passSaves, *pass)
	return nil
}

func (s *stubStore) GetRun(_ context.Context, id string) (*ConsultationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.runSaves) - 1; i >= 0; i-- {
		if s.runSaves[i].ID == id {
			run := s.runSaves[i]
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", id, apperrors.ErrNotFound)
}

func (s *stubStore) DeleteRun(context.Context, string) error { return nil }

func (s *stubStore) SaveComparison(_ context.Context, rec *ComparisonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comparisons = append(s.comparisons, *rec)
	return nil
}

func (s *stubStore) AnnotateComparison(context.Context, string, string, string) error { return nil }

func (s *stubStore) GetComparison(_ context.Context, id string) (*ComparisonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comparisons {
		if s.comparisons[i].ID == id {
			rec := s.comparisons[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("comparison %s: %w", id, apperrors.ErrNotFound)
}

func (s *stubStore) lastRun() *ConsultationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runSaves) == 0 {
		return nil
	}
	run := s.runSaves[len(s.runSaves)-1]
	return &run
}

// fixedPipeline is a Pipeline returning a canned outcome.
type fixedPipeline struct {
	mu      sync.Mutex
	calls   int
	outcome *Outcome
	err     error
}

func (p *fixedPipeline) Execute(context.Context, *ConsultationRequest) (*Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.outcome, p.err
}

func (p *fixedPipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func testRequest() *ConsultationRequest {
	return &ConsultationRequest{
		CaseID: "case-1",
		Title:  "Layoffs or pay cuts",
		Description: "Our company must cut costs by twenty percent. I can either lay off " +
			"a fifth of the team or impose across-the-board pay cuts. Both choices harm " +
			"people who trusted me. What should I weigh in deciding?",
	}
}

func testPassages() []retrieval.Passage {
	return []retrieval.Passage{
		{CanonicalID: "BG_2_47", Text: "You have a right to your actions alone, never to their fruits.", Relevance: 0.92},
		{CanonicalID: "BG_18_66", Text: "Abandon all varieties of duty and surrender.", Relevance: 0.81},
	}
}

const acceptedVerdict = `{"accepted": true}`

// validBriefJSON cites one retrieved passage and one that was never
// retrieved; the second must be filtered out.
const validBriefJSON = `{
	"executive_summary": "You face a duty conflict between livelihood and fairness.",
	"options": [
		{"title": "Targeted layoffs", "description": "Reduce headcount with generous severance.", "pros": ["preserves pay"], "cons": ["harms those released"], "sources": ["BG_2_47"]},
		{"title": "Shared pay cuts", "description": "Spread the burden across everyone.", "pros": ["keeps the team whole"], "cons": ["risks attrition"], "sources": ["BG_18_66"]},
		{"title": "Hybrid approach", "description": "Smaller layoffs plus modest cuts.", "pros": ["balances harms"], "cons": ["complex to explain"], "sources": ["BG_3_35"]}
	],
	"recommended_action": {"option": 1, "steps": ["Model both plans", "Consult the leadership team"], "sources": ["BG_2_47"]},
	"reflection_prompts": ["Whose trust are you most at risk of betraying?"],
	"sources": [
		{"canonical_id": "BG_2_47", "paraphrase": "Act without attachment to outcomes.", "relevance": 0.92},
		{"canonical_id": "BG_3_35", "paraphrase": "Better one's own duty imperfectly done.", "relevance": 0.7}
	],
	"confidence": 0.82
}`
