package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vouchercat/internal/app"
	"vouchercat/internal/config"
	"vouchercat/internal/logging"
)

// appMode is set in a command's Annotations to choose how much of the app
// PersistentPreRunE builds.
const appModeAnnotation = "app"

const (
	modeFull    = "full"    // default: provider credentials required
	modeOffline = "offline" // catalogs, prompts and history only
	modeNone    = "none"    // config only
)

var (
	configFile string
	appCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "vouchercat",
	Short: "Gift-voucher catalog categorizer",
	Long: `vouchercat assigns every product row of a voucher CSV export to a leaf
category of the gift-voucher catalog, using a language model, and writes
<name>_categorized.csv next to the input.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		var appInstance *app.App
		switch commandMode(cmd) {
		case modeNone:
		case modeOffline:
			appInstance, err = app.NewOffline(ctx, cfg)
		default:
			appInstance, err = app.NewApp(ctx, cfg)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		if appInstance != nil {
			appCleanup = appInstance.Close
			ctx = context.WithValue(ctx, appKey, appInstance)
		}
		cmd.SetContext(ctx)
		return nil
	},
}

// commandMode returns the closest app mode annotation up the command tree.
func commandMode(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[appModeAnnotation]; ok {
			return mode
		}
	}
	return modeFull
}

func withMode(mode string) map[string]string {
	return map[string]string{appModeAnnotation: mode}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default searches ./config.yaml and ~/.config/vouchercat/config.yaml)")
}

func Execute() {
	err := rootCmd.Execute()
	if appCleanup != nil {
		appCleanup()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const (
	appKey    contextKey = "app"
	configKey contextKey = "config"
)

// GetAppFromContext retrieves the app built by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

// GetConfigFromContext retrieves the loaded configuration.
func GetConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
