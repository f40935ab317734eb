package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/catalog"
	"vouchercat/internal/config"
	"vouchercat/internal/costtracker"
	"vouchercat/internal/csvio"
	"vouchercat/internal/jobs"
	"vouchercat/internal/llm"
	"vouchercat/internal/models"
	"vouchercat/internal/prompt"
	"vouchercat/internal/retry"
	"vouchercat/internal/services"
	"vouchercat/internal/store"
	"vouchercat/internal/store/history"
	"vouchercat/internal/worker"
	"vouchercat/pkg/categorizer"
)

type App struct {
	Config   *config.Config
	Catalogs *catalog.Registry
	Prompts  *prompt.Set

	CompletionService llm.CompletionService
	CostTracker       *costtracker.MemoryTracker
	Categorizer       *categorizer.LLMCategorizer

	CategorizationService *services.CategorizationService

	History   store.HistoryStore // nil when history is disabled or unavailable
	Jobs      *jobs.Runner
	JobClient store.JobClient
}

// NewOffline builds the parts that need no provider credentials: catalogs,
// prompts and the history store.
func NewOffline(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.initCatalogs(); err != nil {
		return nil, err
	}
	if err := app.initPrompts(); err != nil {
		return nil, err
	}
	app.initHistory(ctx)
	return app, nil
}

// NewApp builds the full application. It fails with models.ErrConfig when the
// provider cannot be configured.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app, err := NewOffline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := app.initCompletionService(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initCostTracker()
	app.initCategorizer()
	if err := app.initCategorizationService(); err != nil {
		app.Close()
		return nil, err
	}
	app.initJobs()
	app.initJobClient()
	return app, nil
}

func (a *App) initCatalogs() error {
	registry, err := catalog.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load catalogs: %w", err)
	}
	a.Catalogs = registry
	return nil
}

func (a *App) initPrompts() error {
	dir := config.PromptDir(a.Config.Prompts.Dir)
	set, err := prompt.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	a.Prompts = set
	return nil
}

// initHistory opens the history database. History is optional, so a failure
// is logged and the app continues without it.
func (a *App) initHistory(ctx context.Context) {
	if !a.Config.History.Enabled {
		return
	}
	h, err := history.Open(ctx, a.Config.History.Path)
	if err != nil {
		log.WithError(err).Warn("Run history disabled")
		return
	}
	a.History = h
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return fmt.Errorf("%w: no API key for provider %s; run 'vouchercat config set' or set %s",
			models.ErrConfig, cfg.LLM.Provider, apiKeyEnv(cfg.LLM.Provider))
	}
	svc, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   apiKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize completion service: %w", err)
	}
	log.Infof("Using %s model %s", svc.Name(), svc.ModelName())
	a.CompletionService = svc
	return nil
}

func apiKeyEnv(provider string) string {
	if strings.EqualFold(provider, llm.ProviderGemini) {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func (a *App) initCostTracker() {
	a.CostTracker = costtracker.New()
	if a.History != nil {
		a.CostTracker.WithSink(a.History)
	}
}

func (a *App) initCategorizer() {
	cfg := a.Config
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		MinWait:     cfg.Retry.MinWait,
		MaxWait:     cfg.Retry.MaxWait,
	}
	pricing := cfg.Pricing[strings.ToLower(cfg.LLM.Provider)]
	a.Categorizer = categorizer.NewLLMCategorizer(a.CompletionService, a.Prompts, policy, a.CostTracker, pricing)
}

func (a *App) initCategorizationService() error {
	opts, err := ServiceOptions(a.Config)
	if err != nil {
		return err
	}
	svc := services.NewCategorizationService(a.Categorizer, a.Categorizer, a.Catalogs, opts)
	svc.CostTracker = a.CostTracker
	svc.ModelName = a.CompletionService.ModelName()
	if a.History != nil {
		svc.History = a.History
	}
	a.CategorizationService = svc
	return nil
}

// ServiceOptions converts the processing section into run options.
func ServiceOptions(cfg *config.Config) (services.Options, error) {
	encodings := make([]csvio.Encoding, 0, len(cfg.Processing.Encodings))
	for _, name := range cfg.Processing.Encodings {
		enc, err := csvio.LookupEncoding(name)
		if err != nil {
			return services.Options{}, fmt.Errorf("%w: processing.encodings: %w", models.ErrConfig, err)
		}
		encodings = append(encodings, enc)
	}
	return services.Options{
		ChunkSize:       cfg.Processing.ChunkSize,
		Concurrency:     cfg.Processing.Concurrency,
		Encodings:       encodings,
		RequiredColumns: cfg.Processing.RequiredColumns,
		SampleLines:     cfg.Processing.SampleLines,
	}, nil
}

// initJobs creates the in-process runner. Commands that use it call Start.
func (a *App) initJobs() {
	a.Jobs = jobs.NewRunner(a.CategorizationService, a.Config.Jobs.Workers, a.Config.Jobs.QueueSize)
}

// initJobClient creates the asynq client. It does not dial Redis until a
// task is enqueued.
func (a *App) initJobClient() {
	var runs store.RunStore
	if a.History != nil {
		runs = a.History
	}
	a.JobClient = store.NewAsynqJobClient(worker.RedisOpt(a.Config), runs)
}

// Close releases every resource the app opened.
func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Stop()
	}
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("Failed to close job client")
		}
	}
	if cs, ok := a.CompletionService.(interface{ Close() error }); ok && cs != nil {
		if err := cs.Close(); err != nil {
			log.WithError(err).Warn("Failed to close completion service")
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			log.WithError(err).Warn("Failed to close history database")
		}
	}
}
