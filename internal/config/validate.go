package config

import (
	"errors"
	"fmt"
	"strings"

	"vouchercat/internal/models"
)

// Validate checks ranges and enumerations. It does not require an API key;
// commands that call a provider check that when they build one.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be openai or gemini, got %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}

	// Processing config
	if c.Processing.ChunkSize <= 0 {
		return errors.New("processing.chunk_size must be a positive integer")
	}
	if c.Processing.Concurrency <= 0 {
		return errors.New("processing.concurrency must be a positive integer")
	}
	if len(c.Processing.Encodings) == 0 {
		return errors.New("processing.encodings must list at least one encoding")
	}
	if len(c.Processing.RequiredColumns) == 0 {
		return errors.New("processing.required_columns must list at least one column")
	}
	if c.Processing.SampleLines <= 0 {
		return errors.New("processing.sample_lines must be a positive integer")
	}

	// Retry config
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.MinWait < 0 || c.Retry.MaxWait < c.Retry.MinWait {
		return fmt.Errorf("retry wait window [%s, %s] is invalid", c.Retry.MinWait, c.Retry.MaxWait)
	}

	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is required when history is enabled")
	}

	// Worker config
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	if c.Jobs.Workers <= 0 {
		return errors.New("jobs.workers must be a positive integer")
	}
	if c.Jobs.QueueSize < 0 {
		return errors.New("jobs.queue_size must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	for provider, byModel := range c.Pricing {
		for model, price := range byModel {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}
	return nil
}
