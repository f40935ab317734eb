package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"vouchercat/internal/models"
)

// ContentGenerator is the subset of *genai.GenerativeModel used by GeminiProvider.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider implements CompletionService using the Gemini API with a JSON response MIME type.
type GeminiProvider struct {
	client *genai.Client
	gen    ContentGenerator
	model  string
	verify func(ctx context.Context) error
}

// NewGeminiProvider creates a Gemini client for model.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key not provided", models.ErrConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: Gemini model not provided", models.ErrConfig)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	gm := client.GenerativeModel(model)
	gm.ResponseMIMEType = "application/json"

	log.Infof("Gemini provider initialized with model %s", model)
	p := NewGeminiProviderWithGenerator(gm, model, func(ctx context.Context) error {
		_, err := client.ListModels(ctx).Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	})
	p.client = client
	return p, nil
}

// NewGeminiProviderWithGenerator wraps an existing generator. verify may be nil.
func NewGeminiProviderWithGenerator(gen ContentGenerator, model string, verify func(ctx context.Context) error) *GeminiProvider {
	return &GeminiProvider{gen: gen, model: model, verify: verify}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) ModelName() string { return p.model }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := p.gen.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Completion{}, classifyGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Completion{}, fmt.Errorf("%w: no candidates returned from Gemini", models.ErrEmptyResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return Completion{}, fmt.Errorf("%w: Gemini returned empty content", models.ErrEmptyResponse)
	}

	out := Completion{Content: content}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// Verify fetches the first entry of the model listing.
func (p *GeminiProvider) Verify(ctx context.Context) error {
	if p.verify == nil {
		return nil
	}
	if err := p.verify(ctx); err != nil {
		return fmt.Errorf("%w: Gemini rejected the credentials: %w", models.ErrConfig, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return rateLimited(ProviderGemini, err)
	}
	return providerFailed(ProviderGemini, err)
}

var _ CompletionService = (*GeminiProvider)(nil)
