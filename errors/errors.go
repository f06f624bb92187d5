package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrLLMTimeout indicates an LLM call exceeded its deadline
	ErrLLMTimeout = errors.New("llm call timed out")

	// ErrLLMTransport indicates an LLM transport-level failure
	ErrLLMTransport = errors.New("llm transport error")

	// ErrRunFailed indicates a consultation run terminated without a usable result
	ErrRunFailed = errors.New("consultation run failed")

	// ErrBriefInvalid indicates a generated brief failed schema validation
	ErrBriefInvalid = errors.New("brief failed validation")

	// ErrRunAbandoned indicates the caller cancelled the run before completion
	ErrRunAbandoned = errors.New("consultation run abandoned")

	// ErrRateLimited indicates the request was refused by admission control
	ErrRateLimited = errors.New("rate limit exceeded")
)
