package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/llm"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Provider implements llm.Client for Anthropic Claude
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using the official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Generate implements llm.Client
func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	callCtx, cancel := llm.CallContext(ctx, req.Timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(p.config.Model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	} else if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	apiMessage, err := p.client.Messages.New(callCtx, params)
	if err != nil {
		if llm.IsTimeout(err) {
			return nil, fmt.Errorf("claude: %w: %v", apperrors.ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("claude: %w: %v", apperrors.ErrLLMTransport, err)
	}

	var text string
	for _, content := range apiMessage.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return &llm.Response{
		Text:  text,
		Model: string(apiMessage.Model),
		Usage: llm.Usage{
			PromptTokens:     int(apiMessage.Usage.InputTokens),
			CompletionTokens: int(apiMessage.Usage.OutputTokens),
			TotalTokens:      int(apiMessage.Usage.InputTokens + apiMessage.Usage.OutputTokens),
		},
	}, nil
}
