// Package llm wraps the chat completion backends used for classification.
package llm

import (
	"context"
	"fmt"
	"strings"

	"vouchercat/internal/models"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Completion is the text of one model answer plus its token usage.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// CompletionService sends a single user prompt and expects a JSON object back.
//
// Errors wrap models.ErrRateLimited when the backend throttled the request,
// models.ErrEmptyResponse when it answered with no content, and
// models.ErrProvider for any other failure.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
	Name() string
	ModelName() string
	// Verify performs a cheap authenticated call to check the credentials.
	Verify(ctx context.Context) error
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds the provider named in opts.
func New(ctx context.Context, opts Options) (CompletionService, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAIProvider(opts.APIKey, opts.Model, opts.BaseURL)
	case ProviderGemini:
		return NewGeminiProvider(ctx, opts.APIKey, opts.Model)
	}
	return nil, fmt.Errorf("%w: unknown llm provider %q", models.ErrConfig, opts.Provider)
}

func rateLimited(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrRateLimited, provider, err)
}

func providerFailed(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrProvider, provider, err)
}
