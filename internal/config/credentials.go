package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
)

// KnownModels are offered by `config set` and accepted without a warning.
var KnownModels = []string{
	"gpt-5-nano-2025-08-07",
	"gpt-5-mini-2025-08-07",
}

// Credentials is the persisted API key file. The first two fields keep the
// layout older installs already have on disk.
type Credentials struct {
	OpenAIAPIKey string `json:"openai_api_key"`
	ModelName    string `json:"model_name"`
	Provider     string `json:"provider,omitempty"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
}

// APIKey returns the key for the credential's provider.
func (c Credentials) APIKey() string {
	if c.Provider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// Verifier checks credentials against the provider before they are saved.
type Verifier interface {
	Verify(ctx context.Context) error
}

// LoadCredentials reads the credentials file. A missing file yields nil
// without error; an unreadable or malformed one is logged and ignored.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("Credentials file not found at %s", path)
		return nil, nil
	}
	if err != nil {
		log.Errorf("Failed to read credentials %s: %v", path, err)
		return nil, nil
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		log.Errorf("Failed to parse credentials %s: %v", path, err)
		return nil, nil
	}
	return &creds, nil
}

// SaveCredentials verifies creds with verifier and only then writes them to
// path. A rejected key wraps models.ErrConfig and leaves the file untouched.
func SaveCredentials(ctx context.Context, path string, creds Credentials, verifier Verifier) error {
	if creds.APIKey() == "" {
		return fmt.Errorf("%w: API key must not be empty", models.ErrConfig)
	}
	if creds.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", models.ErrConfig)
	}
	log.Debugf("Saving credentials with model '%s'", creds.ModelName)

	if verifier != nil {
		if err := verifier.Verify(ctx); err != nil {
			log.Errorf("Invalid API key provided: %v", err)
			return fmt.Errorf("%w: invalid API key provided: %w", models.ErrConfig, err)
		}
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save credentials '%s': %w", path, err)
	}
	log.Infof("Credentials saved to %s with model '%s'", path, creds.ModelName)
	return nil
}

// IsKnownModel reports whether model is in KnownModels.
func IsKnownModel(model string) bool {
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}
