// Package anthropic implements the chat collaborator on the Anthropic
// Messages API. Anthropic has no embeddings endpoint, so this package only
// serves categorization.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// Provider implements provider.ChatClient for Anthropic Claude.
type Provider struct {
	client anthropic.Client
	config Config
}

// Config holds Anthropic-specific configuration.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// New creates a new Anthropic provider.
func New(apiKey, model string) *Provider {
	return NewWithConfig(Config{
		APIKey: apiKey,
		Model:  model,
	})
}

// NewWithConfig creates a new Anthropic provider with custom configuration.
func NewWithConfig(config Config) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		client: anthropic.NewClient(opts...),
		config: config,
	}
}

// Complete implements provider.ChatClient.
func (p *Provider) Complete(ctx context.Context, system, user string) (string, error) {
	msgReq := anthropic.MessageNewParams{
		Model: anthropic.Model(p.config.Model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	if system != "" {
		msgReq.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if p.config.MaxTokens > 0 {
		msgReq.MaxTokens = int64(p.config.MaxTokens)
	} else {
		// Anthropic requires max_tokens, set a reasonable default
		msgReq.MaxTokens = int64(4096)
	}

	if p.config.Temperature > 0 {
		msgReq.Temperature = anthropic.Float(float64(p.config.Temperature))
	}

	resp, err := p.client.Messages.New(ctx, msgReq)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", types.ErrEmptyResponse
	}

	return text.String(), nil
}

// ID returns the model identifier.
func (p *Provider) ID() string {
	return fmt.Sprintf("anthropic:%s", p.config.Model)
}
