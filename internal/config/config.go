package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VOUCHERCAT_PROCESSING_CHUNK_SIZE.
const EnvPrefix = "VOUCHERCAT"

// DefaultModel is used when neither config nor saved credentials name a model.
const DefaultModel = "gpt-5-nano-2025-08-07"

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

type Config struct {
	LLM struct {
		Provider     string `mapstructure:"provider"` // "openai" or "gemini"
		Model        string `mapstructure:"model"`
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
		GeminiAPIKey string `mapstructure:"gemini_api_key"`
		BaseURL      string `mapstructure:"base_url"`
	} `mapstructure:"llm"`

	Processing struct {
		ChunkSize       int      `mapstructure:"chunk_size"`
		Concurrency     int      `mapstructure:"concurrency"`
		Encodings       []string `mapstructure:"encodings"`
		RequiredColumns []string `mapstructure:"required_columns"`
		SampleLines     int      `mapstructure:"sample_lines"`
	} `mapstructure:"processing"`

	Retry struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		MinWait     time.Duration `mapstructure:"min_wait"`
		MaxWait     time.Duration `mapstructure:"max_wait"`
	} `mapstructure:"retry"`

	Prompts struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"prompts"`

	Credentials struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"credentials"`

	History struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"history"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Jobs struct {
		Workers   int `mapstructure:"workers"`
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"jobs"`

	Server struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}.
	// Dots in model names split viper keys, so they are written as underscores.
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	if strings.EqualFold(c.LLM.Provider, "gemini") {
		return c.LLM.GeminiAPIKey
	}
	return c.LLM.OpenAIAPIKey
}

// Price returns the per-token pricing of the configured provider and model.
func (c *Config) Price() (PricingInfo, bool) {
	return LookupPrice(c.Pricing[strings.ToLower(c.LLM.Provider)], c.LLM.Model)
}

// LookupPrice finds model in a provider's pricing table, also trying the
// underscored spelling of dotted model names.
func LookupPrice(prices map[string]PricingInfo, model string) (PricingInfo, bool) {
	if p, ok := prices[model]; ok {
		return p, true
	}
	p, ok := prices[strings.ReplaceAll(model, ".", "_")]
	return p, ok
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("prompts.dir", "")

	v.SetDefault("processing.chunk_size", 50)
	v.SetDefault("processing.concurrency", 50)
	v.SetDefault("processing.encodings", []string{"utf-8", "cp1252", "latin1"})
	v.SetDefault("processing.required_columns", []string{"ProgramName", "ProgramDescription", "About_Place"})
	v.SetDefault("processing.sample_lines", 10)

	v.SetDefault("retry.max_attempts", 20)
	v.SetDefault("retry.min_wait", 10*time.Second)
	v.SetDefault("retry.max_wait", 30*time.Second)

	v.SetDefault("credentials.path", "~/.product_categorizer_config.json")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "~/.config/vouchercat/history.db")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queues", map[string]int{"default": 1})

	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.queue_size", 16)

	v.SetDefault("server.address", ":8080")

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "text")

	v.SetDefault("pricing", map[string]any{
		"openai": map[string]any{
			"gpt-5-nano-2025-08-07": map[string]any{"input_per_token": 0.00000005, "output_per_token": 0.0000004},
			"gpt-5-mini-2025-08-07": map[string]any{"input_per_token": 0.00000025, "output_per_token": 0.000002},
		},
		"gemini": map[string]any{
			"gemini-flash-latest": map[string]any{"input_per_token": 0.0000003, "output_per_token": 0.0000025},
		},
	})
}

// LoadConfig builds the configuration from defaults, an optional config.yaml,
// environment variables and finally the saved credentials file. An empty
// configFile searches the working directory and ~/.config/vouchercat.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "vouchercat"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The provider SDKs' conventional variables work without the prefix.
	_ = v.BindEnv("llm.openai_api_key", EnvPrefix+"_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", EnvPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	var err error
	if cfg.Credentials.Path, err = ExpandHome(cfg.Credentials.Path); err != nil {
		return nil, err
	}
	if cfg.History.Path, err = ExpandHome(cfg.History.Path); err != nil {
		return nil, err
	}
	if err := cfg.applyCredentials(); err != nil {
		return nil, err
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	return &cfg, nil
}

// applyCredentials fills the key, model and provider from the saved
// credentials file where config and environment left them empty.
func (c *Config) applyCredentials() error {
	creds, err := LoadCredentials(c.Credentials.Path)
	if err != nil || creds == nil {
		return err
	}
	if c.LLM.OpenAIAPIKey == "" {
		c.LLM.OpenAIAPIKey = creds.OpenAIAPIKey
	}
	if c.LLM.GeminiAPIKey == "" {
		c.LLM.GeminiAPIKey = creds.GeminiAPIKey
	}
	if c.LLM.Model == "" {
		c.LLM.Model = creds.ModelName
	}
	if creds.Provider != "" && c.LLM.Provider == "openai" {
		c.LLM.Provider = creds.Provider
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
