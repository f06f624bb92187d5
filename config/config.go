package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// Config is the application configuration. Values come from an optional
// YAML file, with environment variables overriding file values.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	LLM        LLMConfig        `yaml:"llm"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Comparison ComparisonConfig `yaml:"comparison"`
	Runner     RunnerConfig     `yaml:"runner"`
}

// ServiceConfig identifies the deployment.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LLMConfig selects the model provider used by default for all passes.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // claude, openai, gemini
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PipelineConfig controls the multi-pass orchestrator and its fallback.
type PipelineConfig struct {
	MultipassEnabled     bool          `yaml:"multipass_enabled"`
	FallbackToSinglePass bool          `yaml:"fallback_to_single_pass"`
	MaxRetries           int           `yaml:"max_retries"`
	InitialBackoff       time.Duration `yaml:"initial_backoff"`
	MaxBackoff           time.Duration `yaml:"max_backoff"`
	AcceptanceTimeout    time.Duration `yaml:"acceptance_timeout"`
	DraftTimeout         time.Duration `yaml:"draft_timeout"`
	CritiqueTimeout      time.Duration `yaml:"critique_timeout"`
	RefineTimeout        time.Duration `yaml:"refine_timeout"`
	StructureTimeout     time.Duration `yaml:"structure_timeout"`
	ConfidenceThreshold  float64       `yaml:"confidence_threshold"`
}

// RetrievalConfig controls the passage retrieval step.
type RetrievalConfig struct {
	TopK            int    `yaml:"top_k"`
	CanonicalPrefix string `yaml:"canonical_prefix"`
}

// ComparisonConfig controls the sampled dual-pipeline mode.
type ComparisonConfig struct {
	Enabled         bool    `yaml:"enabled"`
	SampleRate      float64 `yaml:"sample_rate"`
	PrimaryPipeline string  `yaml:"primary_pipeline"`
}

// RunnerConfig bounds the dispatcher.
type RunnerConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Default returns the configuration used when no file or env overrides are
// present. Pipeline values mirror consult.DefaultConfig.
func Default() *Config {
	pipeline := consult.DefaultConfig()
	return &Config{
		Service: ServiceConfig{
			Name:        "geetanjali",
			Version:     "dev",
			Environment: "development",
		},
		LLM: LLMConfig{
			Provider:  "claude",
			MaxTokens: int(pipeline.MaxTokens),
		},
		Pipeline: PipelineConfig{
			MultipassEnabled:     pipeline.MultipassEnabled,
			FallbackToSinglePass: pipeline.FallbackToSinglePass,
			MaxRetries:           pipeline.MaxRetries,
			InitialBackoff:       pipeline.InitialBackoff,
			MaxBackoff:           pipeline.MaxBackoff,
			AcceptanceTimeout:    pipeline.Timeouts.Acceptance,
			DraftTimeout:         pipeline.Timeouts.Draft,
			CritiqueTimeout:      pipeline.Timeouts.Critique,
			RefineTimeout:        pipeline.Timeouts.Refine,
			StructureTimeout:     pipeline.Timeouts.Structure,
			ConfidenceThreshold:  pipeline.ConfidenceThreshold,
		},
		Retrieval: RetrievalConfig{
			TopK:            pipeline.TopK,
			CanonicalPrefix: pipeline.CanonicalPrefix,
		},
		Comparison: ComparisonConfig{
			Enabled:         pipeline.ComparisonEnabled,
			SampleRate:      pipeline.ComparisonSampleRate,
			PrimaryPipeline: pipeline.PrimaryPipeline,
		},
		Runner: RunnerConfig{
			MaxConcurrency: 10,
		},
	}
}

// Load reads configuration from the given YAML file (may be empty for none)
// and applies environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Service.Environment, "GEETANJALI_ENV")
	setString(&c.LLM.Provider, "GEETANJALI_LLM_PROVIDER")
	setString(&c.LLM.Model, "GEETANJALI_LLM_MODEL")
	setString(&c.LLM.APIKey, "GEETANJALI_LLM_API_KEY")
	setBool(&c.Pipeline.MultipassEnabled, "GEETANJALI_MULTIPASS_ENABLED")
	setBool(&c.Pipeline.FallbackToSinglePass, "GEETANJALI_FALLBACK_ENABLED")
	setInt(&c.Pipeline.MaxRetries, "GEETANJALI_MAX_RETRIES")
	setInt(&c.Retrieval.TopK, "GEETANJALI_TOP_K")
	setBool(&c.Comparison.Enabled, "GEETANJALI_COMPARISON_ENABLED")
	setFloat(&c.Comparison.SampleRate, "GEETANJALI_COMPARISON_SAMPLE_RATE")
	setString(&c.Comparison.PrimaryPipeline, "GEETANJALI_COMPARISON_PRIMARY")
	setInt(&c.Runner.MaxConcurrency, "GEETANJALI_MAX_CONCURRENCY")
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("service.name", c.Service.Name)
	v.ValidateOneOf("llm.provider", c.LLM.Provider, "claude", "openai", "gemini")
	v.RequireNonNegative("pipeline.max_retries", c.Pipeline.MaxRetries)
	v.RequirePositiveDuration("pipeline.acceptance_timeout", c.Pipeline.AcceptanceTimeout)
	v.RequirePositiveDuration("pipeline.draft_timeout", c.Pipeline.DraftTimeout)
	v.RequirePositiveDuration("pipeline.critique_timeout", c.Pipeline.CritiqueTimeout)
	v.RequirePositiveDuration("pipeline.refine_timeout", c.Pipeline.RefineTimeout)
	v.RequirePositiveDuration("pipeline.structure_timeout", c.Pipeline.StructureTimeout)
	v.ValidateFloatRange("pipeline.confidence_threshold", c.Pipeline.ConfidenceThreshold, 0, 1)
	v.RequirePositive("retrieval.top_k", c.Retrieval.TopK)
	v.RequireNonEmpty("retrieval.canonical_prefix", c.Retrieval.CanonicalPrefix)
	v.ValidateFloatRange("comparison.sample_rate", c.Comparison.SampleRate, 0, 1)
	v.ValidateOneOf("comparison.primary_pipeline", c.Comparison.PrimaryPipeline,
		consult.PipelineMultipass, consult.PipelineSinglepass)
	v.RequirePositive("runner.max_concurrency", c.Runner.MaxConcurrency)
	return v.Error()
}

// ToPipelineConfig produces the consult package configuration.
func (c *Config) ToPipelineConfig() *consult.Config {
	cfg := consult.DefaultConfig()
	cfg.Name = c.Service.Name
	cfg.TopK = c.Retrieval.TopK
	cfg.CanonicalPrefix = c.Retrieval.CanonicalPrefix
	cfg.MultipassEnabled = c.Pipeline.MultipassEnabled
	cfg.FallbackToSinglePass = c.Pipeline.FallbackToSinglePass
	cfg.MaxRetries = c.Pipeline.MaxRetries
	if c.Pipeline.InitialBackoff > 0 {
		cfg.InitialBackoff = c.Pipeline.InitialBackoff
	}
	if c.Pipeline.MaxBackoff > 0 {
		cfg.MaxBackoff = c.Pipeline.MaxBackoff
	}
	cfg.Timeouts = consult.PassTimeouts{
		Acceptance: c.Pipeline.AcceptanceTimeout,
		Draft:      c.Pipeline.DraftTimeout,
		Critique:   c.Pipeline.CritiqueTimeout,
		Refine:     c.Pipeline.RefineTimeout,
		Structure:  c.Pipeline.StructureTimeout,
	}
	cfg.ConfidenceThreshold = c.Pipeline.ConfidenceThreshold
	if c.LLM.MaxTokens > 0 {
		cfg.MaxTokens = int64(c.LLM.MaxTokens)
	}
	cfg.ComparisonEnabled = c.Comparison.Enabled
	cfg.ComparisonSampleRate = c.Comparison.SampleRate
	cfg.PrimaryPipeline = c.Comparison.PrimaryPipeline
	return cfg
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func setFloat(target *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}
