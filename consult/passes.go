package consult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geetanjaliapp/geetanjali-sub001/llm"
	"github.com/geetanjaliapp/geetanjali-sub001/retrieval"
)

func runTextPass(ctx context.Context, client llm.Client, req *llm.Request, policy RetryPolicy) *PassResult {
	start := time.Now()
	var resp *llm.Response
	retries, err := policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = client.Generate(ctx, req)
		return callErr
	})
	result := &PassResult{
		Duration: time.Since(start),
		Retries:  retries,
	}
	if err != nil {
		result.Err = err
		if llm.IsTimeout(err) {
			result.Status = PassTimeout
		} else {
			result.Status = PassError
		}
		return result
	}
	result.Status = PassSuccess
	result.OutputText = resp.Text
	result.TokensUsed = resp.Usage.TotalTokens
	return result
}

// RunDraft produces the free-form first counsel from the case and passages.
func RunDraft(ctx context.Context, client llm.Client, req *ConsultationRequest, passages []retrieval.Passage, cfg *Config) *PassResult {
	return runTextPass(ctx, client, &llm.Request{
		Prompt:       BuildDraftPrompt(req, passages),
		SystemPrompt: draftSystemPrompt,
		Temperature:  cfg.DraftTemperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      cfg.Timeouts.Draft,
	}, retryPolicyFromConfig(cfg))
}

// RunCritique reviews the draft. An exhausted timeout or transport failure
// here downgrades to skipped so refinement can proceed from the draft alone.
func RunCritique(ctx context.Context, client llm.Client, req *ConsultationRequest, draft string, cfg *Config) *PassResult {
	result := runTextPass(ctx, client, &llm.Request{
		Prompt:       BuildCritiquePrompt(req, draft),
		SystemPrompt: critiqueSystemPrompt,
		Temperature:  cfg.CritiqueTemperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      cfg.Timeouts.Critique,
	}, retryPolicyFromConfig(cfg))
	if result.Status == PassTimeout || (result.Status == PassError && llm.IsTransient(result.Err)) {
		result.Status = PassSkipped
		result.Err = nil
	}
	return result
}

// RunRefine revises the draft against the critique; critique may be empty.
func RunRefine(ctx context.Context, client llm.Client, req *ConsultationRequest, draft, critique string, passages []retrieval.Passage, cfg *Config) *PassResult {
	return runTextPass(ctx, client, &llm.Request{
		Prompt:       BuildRefinePrompt(req, draft, critique, passages),
		SystemPrompt: refineSystemPrompt,
		Temperature:  cfg.RefineTemperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      cfg.Timeouts.Refine,
	}, retryPolicyFromConfig(cfg))
}

// RunStructure converts refined counsel into the machine-readable brief.
// Decode failures are retried like transport failures; an undecodable or
// unrepairable final response surfaces as a pass error.
func RunStructure(ctx context.Context, client llm.Client, refined string, cfg *Config) *PassResult {
	policy := retryPolicyFromConfig(cfg)
	baseRetryable := policy.Retryable
	if baseRetryable == nil {
		baseRetryable = llm.IsTransient
	}
	policy.Retryable = func(err error) bool {
		if baseRetryable(err) {
			return true
		}
		var decodeErr *briefDecodeError
		return errors.As(err, &decodeErr)
	}

	start := time.Now()
	var brief *Brief
	var tokens int
	retries, err := policy.Do(ctx, func(ctx context.Context) error {
		resp, callErr := client.Generate(ctx, &llm.Request{
			Prompt:       BuildStructurePrompt(refined),
			SystemPrompt: structureSystemPrompt,
			Temperature:  cfg.StructureTemperature,
			MaxTokens:    cfg.MaxTokens,
			Timeout:      cfg.Timeouts.Structure,
		})
		if callErr != nil {
			return callErr
		}
		tokens += resp.Usage.TotalTokens
		decoded, decodeErr := DecodeBrief(resp.Text)
		if decodeErr != nil {
			return &briefDecodeError{err: decodeErr}
		}
		if issues := ValidateBrief(decoded); len(issues) > 0 {
			if !RepairBrief(decoded) {
				return &briefDecodeError{err: fmt.Errorf("brief failed validation: %v", issues)}
			}
		}
		brief = decoded
		return nil
	})
	result := &PassResult{
		Duration:   time.Since(start),
		Retries:    retries,
		TokensUsed: tokens,
	}
	if err != nil {
		result.Err = err
		if llm.IsTimeout(err) {
			result.Status = PassTimeout
		} else {
			result.Status = PassError
		}
		return result
	}
	result.Status = PassSuccess
	result.Brief = brief
	return result
}

type briefDecodeError struct {
	err error
}

func (e *briefDecodeError) Error() string { return e.err.Error() }
func (e *briefDecodeError) Unwrap() error { return e.err }
