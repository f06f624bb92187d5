package consult

import (
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/corpus"
)

// PassTimeouts bounds the wall-clock time of each pass's LLM call.
type PassTimeouts struct {
	Acceptance time.Duration
	Draft      time.Duration
	Critique   time.Duration
	Refine     time.Duration
	Structure  time.Duration
}

// For returns the timeout for the given pass.
func (t PassTimeouts) For(n PassNumber) time.Duration {
	switch n {
	case PassAcceptance:
		return t.Acceptance
	case PassDraft:
		return t.Draft
	case PassCritique:
		return t.Critique
	case PassRefine:
		return t.Refine
	case PassStructure:
		return t.Structure
	default:
		return 30 * time.Second
	}
}

// Config controls both pipelines and the routing between them.
type Config struct {
	Name string // Logical name for tracing/logging

	TopK              int    // Passages retrieved per consultation
	CanonicalPrefix   string // Prefix of citable canonical IDs
	MinDescriptionLen int    // Acceptance format gate lower bound
	MaxDescriptionLen int    // Acceptance format gate upper bound

	MultipassEnabled     bool // Route through the multi-pass orchestrator
	FallbackToSinglePass bool // Invoke single-pass when multi-pass fails

	MaxRetries     int           // Per-pass retry bound for transient failures
	InitialBackoff time.Duration // First retry delay; doubles each attempt
	MaxBackoff     time.Duration // Backoff ceiling

	Timeouts PassTimeouts

	DraftTemperature      float64
	CritiqueTemperature   float64
	RefineTemperature     float64
	StructureTemperature  float64
	AcceptanceTemperature float64
	MaxTokens             int64 // Per-call completion budget

	// ConfidenceThreshold below which scholar review is forced.
	ConfidenceThreshold float64
	// ReconstructionConfidence assigned to briefs rebuilt from Refine output.
	ReconstructionConfidence float64

	ComparisonEnabled    bool    // Run both pipelines for sampled requests
	ComparisonSampleRate float64 // Fraction of requests sampled in [0,1]
	PrimaryPipeline      string  // "multipass" or "singlepass"
}

// Pipeline names used in routing, metrics, and comparison records.
const (
	PipelineMultipass  = "multipass"
	PipelineSinglepass = "singlepass"
)

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:              "consult",
		TopK:              5,
		CanonicalPrefix:   corpus.DefaultPrefix,
		MinDescriptionLen: 50,
		MaxDescriptionLen: 5000,

		MultipassEnabled:     true,
		FallbackToSinglePass: true,

		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,

		Timeouts: PassTimeouts{
			Acceptance: 20 * time.Second,
			Draft:      60 * time.Second,
			Critique:   45 * time.Second,
			Refine:     60 * time.Second,
			Structure:  45 * time.Second,
		},

		DraftTemperature:      0.9,
		CritiqueTemperature:   0.6,
		RefineTemperature:     0.3,
		StructureTemperature:  0.2,
		AcceptanceTemperature: 0.0,
		MaxTokens:             3000,

		ConfidenceThreshold:      0.6,
		ReconstructionConfidence: 0.4,

		ComparisonEnabled:    false,
		ComparisonSampleRate: 0.05,
		PrimaryPipeline:      PipelineMultipass,
	}
}

// Option customises the configuration.
type Option func(*Config)

func applyOptions(base *Config, opts []Option) *Config {
	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTopK overrides how many passages one consultation retrieves.
func WithTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.TopK = k
		}
	}
}

// WithMultipass toggles the multi-pass orchestrator.
func WithMultipass(enabled bool) Option {
	return func(cfg *Config) {
		cfg.MultipassEnabled = enabled
	}
}

// WithFallback toggles the single-pass fallback on multi-pass failure.
func WithFallback(enabled bool) Option {
	return func(cfg *Config) {
		cfg.FallbackToSinglePass = enabled
	}
}

// WithMaxRetries bounds per-pass retries on transient failures.
func WithMaxRetries(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.MaxRetries = n
		}
	}
}

// WithTimeouts overrides the per-pass timeouts.
func WithTimeouts(t PassTimeouts) Option {
	return func(cfg *Config) {
		cfg.Timeouts = t
	}
}

// WithConfidenceThreshold sets the scholar-review threshold.
func WithConfidenceThreshold(v float64) Option {
	return func(cfg *Config) {
		if v >= 0 && v <= 1 {
			cfg.ConfidenceThreshold = v
		}
	}
}

// WithComparison enables comparison mode at the given sample rate.
func WithComparison(enabled bool, sampleRate float64, primary string) Option {
	return func(cfg *Config) {
		cfg.ComparisonEnabled = enabled
		if sampleRate >= 0 && sampleRate <= 1 {
			cfg.ComparisonSampleRate = sampleRate
		}
		if primary == PipelineMultipass || primary == PipelineSinglepass {
			cfg.PrimaryPipeline = primary
		}
	}
}

// WithCanonicalPrefix sets the citable canonical ID prefix.
func WithCanonicalPrefix(prefix string) Option {
	return func(cfg *Config) {
		if prefix != "" {
			cfg.CanonicalPrefix = prefix
		}
	}
}
