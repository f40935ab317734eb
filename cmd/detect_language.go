package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vouchercat/internal/csvio"
	"vouchercat/internal/models"
)

var detectLanguageCmd = &cobra.Command{
	Use:   "detect-language <file.csv>",
	Short: "Report the encoding and catalog language of a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		path := args[0]
		opts := appInstance.CategorizationService.Options

		enc, err := csvio.DetectEncoding(path, opts.Encodings...)
		if err != nil {
			return err
		}
		sample, err := csvio.SampleLines(path, enc, opts.SampleLines)
		if err != nil {
			return err
		}
		lang := appInstance.Categorizer.DetectLanguage(cmd.Context(), sample)

		fmt.Printf("Encoding: %s\n", enc.Name)
		if lang == models.LanguageUnknown {
			fmt.Printf("Language: unknown (runs fall back to %s)\n", models.FallbackLanguage)
			return nil
		}
		fmt.Printf("Language: %s\n", lang)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectLanguageCmd)
}
