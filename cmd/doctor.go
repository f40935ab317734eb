package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"vouchercat/internal/llm"
	"vouchercat/internal/worker"
)

var doctorCmd = &cobra.Command{
	Use:         "doctor",
	Short:       "Check credentials, history database and queue connectivity",
	Args:        cobra.NoArgs,
	Annotations: withMode(modeOffline),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config
		failed := false

		fmt.Printf("Checking %s credentials (model %s)...\n", cfg.LLM.Provider, cfg.LLM.Model)
		if err := verifyProvider(ctx, cfg.LLM.Provider, cfg.APIKey(), cfg.LLM.Model, cfg.LLM.BaseURL); err != nil {
			report(false, err.Error())
			failed = true
		} else {
			report(true, "provider accepted the API key")
		}

		fmt.Println("Checking history database...")
		switch {
		case !cfg.History.Enabled:
			report(true, "history disabled")
		case appInstance.History == nil:
			report(false, "could not open "+cfg.History.Path)
			failed = true
		default:
			if err := appInstance.History.Ping(ctx); err != nil {
				report(false, err.Error())
				failed = true
			} else {
				report(true, cfg.History.Path)
			}
		}

		fmt.Println("Checking Redis (background queue)...")
		inspector := asynq.NewInspector(worker.RedisOpt(cfg))
		defer inspector.Close()
		if _, err := inspector.Queues(); err != nil {
			report(false, fmt.Sprintf("%s: %v (only needed for --enqueue and worker)", cfg.Redis.Address, err))
		} else {
			report(true, cfg.Redis.Address)
		}

		if failed {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}

func verifyProvider(ctx context.Context, provider, apiKey, model, baseURL string) error {
	if apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	svc, err := llm.New(ctx, llm.Options{Provider: provider, APIKey: apiKey, Model: model, BaseURL: baseURL})
	if err != nil {
		return err
	}
	if closer, ok := svc.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return svc.Verify(ctx)
}

func report(ok bool, msg string) {
	if ok {
		fmt.Printf("  %s %s\n", color.GreenString("OK"), msg)
		return
	}
	fmt.Printf("  %s %s\n", color.RedString("FAIL"), msg)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
