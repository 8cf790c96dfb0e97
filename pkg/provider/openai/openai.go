// Package openai implements the chat and embeddings collaborators on the
// OpenAI API.
package openai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// Provider implements provider.ChatClient and provider.EmbeddingsClient.
type Provider struct {
	client *openai.Client

	RequestSettings RequestSettings
}

type RequestSettings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// New creates a new OpenAI provider.
func New(apiKey, model string) *Provider {
	clientConfig := openai.DefaultConfig(apiKey)

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		RequestSettings: RequestSettings{
			Model: model,
		},
	}
}

func (p *Provider) SetRequestSettings(settings RequestSettings) {
	p.RequestSettings = settings
}

// Complete implements provider.ChatClient.
func (p *Provider) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.RequestSettings.Model,
		Messages:    messages,
		Temperature: p.RequestSettings.Temperature,
	}
	if p.RequestSettings.MaxTokens > 0 {
		chatReq.MaxTokens = p.RequestSettings.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", types.ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// ComputeEmbeddings implements provider.EmbeddingsClient. The result is
// parallel to texts.
func (p *Provider) ComputeEmbeddings(ctx context.Context, embeddingType types.EmbeddingType, texts []string) ([]types.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(embeddingType),
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("model", string(embeddingType)).
			Int("input_count", len(texts)).
			Msg("Failed to generate embeddings")
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([]types.Embedding, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = types.Embedding{Type: embeddingType, Value: data.Embedding}
	}

	return embeddings, nil
}

// ID returns the model identifier.
func (p *Provider) ID() string {
	return fmt.Sprintf("openai:%s", p.RequestSettings.Model)
}
