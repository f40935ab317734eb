package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vouchercat/internal/config"
	"vouchercat/internal/llm"
)

var (
	configSetAPIKey   string
	configSetModel    string
	configSetProvider string
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Show or change the saved provider credentials",
	Annotations: withMode(modeNone),
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Key", "Value"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.AppendBulk([][]string{
			{"llm.provider", cfg.LLM.Provider},
			{"llm.model", cfg.LLM.Model},
			{"llm.openai_api_key", maskKey(cfg.LLM.OpenAIAPIKey)},
			{"llm.gemini_api_key", maskKey(cfg.LLM.GeminiAPIKey)},
			{"processing.chunk_size", fmt.Sprint(cfg.Processing.ChunkSize)},
			{"processing.concurrency", fmt.Sprint(cfg.Processing.Concurrency)},
			{"processing.encodings", strings.Join(cfg.Processing.Encodings, ", ")},
			{"retry.max_attempts", fmt.Sprint(cfg.Retry.MaxAttempts)},
			{"retry.wait", fmt.Sprintf("%s-%s", cfg.Retry.MinWait, cfg.Retry.MaxWait)},
			{"prompts.dir", config.PromptDir(cfg.Prompts.Dir)},
			{"credentials.path", cfg.Credentials.Path},
			{"history", historyState(cfg)},
		})
		table.Render()
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Verify and save an API key and model",
	Long: `Verifies the API key with a model-listing call to the provider and, only
if it is accepted, saves it with the model name to the credentials file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}

		creds := config.Credentials{}
		if existing, _ := config.LoadCredentials(cfg.Credentials.Path); existing != nil {
			creds = *existing
		}
		provider := strings.ToLower(configSetProvider)
		creds.Provider = provider
		if provider == llm.ProviderOpenAI {
			creds.Provider = ""
			creds.OpenAIAPIKey = configSetAPIKey
		} else {
			creds.GeminiAPIKey = configSetAPIKey
		}
		creds.ModelName = configSetModel
		if provider == llm.ProviderOpenAI && !config.IsKnownModel(creds.ModelName) {
			color.Yellow("Model %q is not one of %v; saving it anyway.", creds.ModelName, config.KnownModels)
		}

		svc, err := llm.New(cmd.Context(), llm.Options{
			Provider: provider,
			APIKey:   configSetAPIKey,
			Model:    configSetModel,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return err
		}
		if closer, ok := svc.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		if err := config.SaveCredentials(cmd.Context(), cfg.Credentials.Path, creds, svc); err != nil {
			return err
		}
		fmt.Printf("%s Saved %s credentials to %s\n", color.GreenString("OK"), provider, cfg.Credentials.Path)
		return nil
	},
}

func maskKey(key string) string {
	if key == "" {
		return color.YellowString("(not set)")
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func historyState(cfg *config.Config) string {
	if !cfg.History.Enabled {
		return "disabled"
	}
	return cfg.History.Path
}

func init() {
	configSetCmd.Flags().StringVar(&configSetAPIKey, "api-key", "", "provider API key")
	configSetCmd.Flags().StringVar(&configSetModel, "model", config.DefaultModel, "model name")
	configSetCmd.Flags().StringVar(&configSetProvider, "provider", llm.ProviderOpenAI, "provider: openai or gemini")
	_ = configSetCmd.MarkFlagRequired("api-key")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
