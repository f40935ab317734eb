package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouchercat/internal/config"
	"vouchercat/internal/models"
)

func testConfig(t *testing.T, apiKey string) *config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", apiKey)
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.History.Path = filepath.Join(home, "history.db")
	return cfg
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t, "sk-test")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Catalogs)
	assert.ElementsMatch(t, []string{"lt", "lv", "pl"}, a.Catalogs.Languages())
	assert.NotNil(t, a.CategorizationService)
	assert.Equal(t, cfg.LLM.Model, a.CategorizationService.ModelName)
	assert.Equal(t, 50, a.CategorizationService.Options.ChunkSize)
	require.NotNil(t, a.History)
	assert.NoError(t, a.History.Ping(context.Background()))
	assert.NotNil(t, a.Jobs)
	assert.NotNil(t, a.JobClient)
}

func TestNewApp_MissingAPIKey(t *testing.T) {
	cfg := testConfig(t, "")
	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfig)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewOffline_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.History.Enabled = false

	a, err := NewOffline(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.History)
	assert.NotNil(t, a.Prompts)
	assert.Nil(t, a.CompletionService)
}

func TestServiceOptions(t *testing.T) {
	cfg := testConfig(t, "")
	opts, err := ServiceOptions(cfg)
	require.NoError(t, err)
	require.Len(t, opts.Encodings, 3)
	assert.Equal(t, "utf-8", opts.Encodings[0].Name)

	cfg.Processing.Encodings = []string{"utf-8", "koi8-r"}
	_, err = ServiceOptions(cfg)
	assert.ErrorIs(t, err, models.ErrConfig)
}
