package categorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/config"
	"vouchercat/internal/costtracker"
	"vouchercat/internal/llm"
	"vouchercat/internal/models"
	"vouchercat/internal/prompt"
	"vouchercat/internal/retry"
)

// DefaultUnknownComment is used when the model names no category and gives no comment.
const DefaultUnknownComment = "Model failed to assign a category"

// LLMCategorizer implements ProductCategorizer and LanguageDetector on top of
// a JSON-mode completion service.
type LLMCategorizer struct {
	llm     llm.CompletionService
	prompts *prompt.Set
	policy  retry.Policy

	// Dependencies for cost tracking
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewLLMCategorizer creates a categorizer. A policy without a Retryable
// function retries rate limits only. costTracker and pricing may be nil.
func NewLLMCategorizer(svc llm.CompletionService, prompts *prompt.Set, policy retry.Policy, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *LLMCategorizer {
	if policy.Retryable == nil {
		policy.Retryable = IsRateLimited
	}
	return &LLMCategorizer{
		llm:         svc,
		prompts:     prompts,
		policy:      policy,
		costTracker: costTracker,
		pricing:     pricing,
	}
}

// IsRateLimited is the default retry predicate.
func IsRateLimited(err error) bool {
	return errors.Is(err, models.ErrRateLimited)
}

func (c *LLMCategorizer) Categorize(ctx context.Context, product models.ProductInput, language string, onWaiting WaitObserver) models.CategoryOutput {
	if onWaiting != nil {
		defer onWaiting(false)
	}

	text, err := c.prompts.Build(product, language)
	if err != nil {
		return c.failure(product, err)
	}

	var completion llm.Completion
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		completion, err = c.llm.Complete(ctx, text)
		return err
	}, func(attempt int, wait time.Duration) {
		log.WithFields(log.Fields{
			"product": product.Name,
			"attempt": attempt,
			"wait":    wait.Round(time.Second),
		}).Warn("Rate limited, backing off")
		if onWaiting != nil {
			onWaiting(true)
		}
	})
	if err != nil {
		return c.failure(product, err)
	}

	c.recordCost(ctx, "categorization", completion)

	out, err := parseCategory(completion.Content)
	if err != nil {
		return c.failure(product, fmt.Errorf("%w\nResponse content: %s", err, completion.Content))
	}
	return out
}

// failure turns err into the unknown output for product.
func (c *LLMCategorizer) failure(product models.ProductInput, err error) models.CategoryOutput {
	var msg string
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted) && errors.Is(err, models.ErrRateLimited):
		msg = fmt.Sprintf("Rate limit exceeded after %d attempts: %v", exhausted.Attempts, exhausted.Err)
	case errors.Is(err, models.ErrProvider):
		msg = fmt.Sprintf("API error (%s): %v", c.llm.Name(), err)
	default:
		msg = fmt.Sprintf("Unexpected error during categorization: %v", err)
	}
	log.WithField("product", product.Name).Error(msg)
	return models.Unknown(msg)
}

func parseCategory(content string) (models.CategoryOutput, error) {
	var parsed struct {
		Category json.RawMessage `json:"category"`
		Comment  string          `json:"comment"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return models.CategoryOutput{}, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	category, err := categoryText(parsed.Category)
	if err != nil {
		return models.CategoryOutput{}, err
	}
	comment := strings.TrimSpace(parsed.Comment)

	if category == "" {
		if comment == "" {
			comment = DefaultUnknownComment
		}
		return models.Unknown(comment), nil
	}
	out := models.CategoryOutput{Category: category, Comment: comment}
	if out.IsUnknown() {
		out.Category = models.UnknownCategory
	}
	return out, nil
}

// categoryText accepts a JSON string or number.
func categoryText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("category has unsupported JSON value %s", raw)
}

// DetectLanguage asks the model once; any failure yields models.LanguageUnknown.
func (c *LLMCategorizer) DetectLanguage(ctx context.Context, sample string) string {
	if strings.TrimSpace(sample) == "" {
		log.Warn("Language detection skipped: empty sample")
		return models.LanguageUnknown
	}

	text, err := c.prompts.BuildLanguageDetection(sample)
	if err != nil {
		log.Errorf("Failed to build language detection prompt: %v", err)
		return models.LanguageUnknown
	}

	completion, err := c.llm.Complete(ctx, text)
	if err != nil {
		log.Errorf("Language detection failed: %v", err)
		return models.LanguageUnknown
	}
	c.recordCost(ctx, "language_detection", completion)

	var parsed struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal([]byte(completion.Content), &parsed); err != nil {
		log.Errorf("Failed to parse language detection response: %v", err)
		return models.LanguageUnknown
	}

	lang := strings.ToLower(strings.TrimSpace(parsed.Language))
	if !models.IsSupportedLanguage(lang) {
		log.Warnf("Language detection returned %q", parsed.Language)
		return models.LanguageUnknown
	}
	log.Infof("Detected language: %s", lang)
	return lang
}

func (c *LLMCategorizer) recordCost(ctx context.Context, operation string, completion llm.Completion) {
	if c.costTracker == nil || completion.InputTokens+completion.OutputTokens == 0 {
		return
	}
	priceInfo, ok := config.LookupPrice(c.pricing, c.llm.ModelName())
	if !ok {
		log.Debugf("Pricing info not found for model '%s'. Cannot record cost for %s.", c.llm.ModelName(), operation)
		return
	}

	cost := float64(completion.InputTokens)*priceInfo.InputPerToken +
		float64(completion.OutputTokens)*priceInfo.OutputPerToken
	event := costtracker.CostEvent{
		Operation: operation,
		AmountUSD: cost,
		Details: map[string]interface{}{
			"provider_name": c.llm.Name(),
			"model_name":    c.llm.ModelName(),
			"input_tokens":  completion.InputTokens,
			"output_tokens": completion.OutputTokens,
		},
	}
	if err := c.costTracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage for %s: %v", operation, err)
	}
}

var (
	_ ProductCategorizer = (*LLMCategorizer)(nil)
	_ LanguageDetector   = (*LLMCategorizer)(nil)
)
