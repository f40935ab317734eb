package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
)

// ChatClient is the subset of *openai.Client used by OpenAIProvider.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider implements CompletionService using the OpenAI chat API in JSON mode.
type OpenAIProvider struct {
	client ChatClient
	model  string
}

// NewOpenAIProvider creates a provider for model. A non-empty baseURL points
// the client at an OpenAI-compatible endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not provided", models.ErrConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: OpenAI model not provided", models.ErrConfig)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	log.Infof("OpenAI provider initialized with model %s", model)
	return NewOpenAIProviderWithClient(openai.NewClientWithConfig(cfg), model), nil
}

// NewOpenAIProviderWithClient wraps an existing client.
func NewOpenAIProviderWithClient(client ChatClient, model string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Completion{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: no choices returned from OpenAI", models.ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Completion{}, fmt.Errorf("%w: OpenAI returned empty content", models.ErrEmptyResponse)
	}
	return Completion{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Verify lists the models visible to the key.
func (p *OpenAIProvider) Verify(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: OpenAI rejected the credentials: %w", models.ErrConfig, err)
	}
	return nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return rateLimited(ProviderOpenAI, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return rateLimited(ProviderOpenAI, err)
	}
	return providerFailed(ProviderOpenAI, err)
}

var _ CompletionService = (*OpenAIProvider)(nil)
