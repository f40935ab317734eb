package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vouchercat/internal/clix"
	"vouchercat/internal/models"
	"vouchercat/internal/services"
)

var (
	classifyName        string
	classifyDescription string
	classifyLocation    string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single product without a CSV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		lang, err := clix.ParseLanguage(cmd.Flags(), "language")
		if err != nil {
			return err
		}
		cat, err := appInstance.Catalogs.Get(lang)
		if err != nil {
			return err
		}

		product := models.ProductInput{Name: classifyName, Description: classifyDescription, Location: classifyLocation}
		out := appInstance.Categorizer.Categorize(cmd.Context(), product, lang, func(waiting bool) {
			if waiting {
				color.New(color.FgYellow).Fprintln(os.Stderr, "Rate limited, waiting before retrying...")
			}
		})

		name, url := "", ""
		if entry, ok := cat.Lookup(out.Category); ok {
			name, url = entry.Name, entry.URL
		}
		category := color.GreenString(out.Category)
		if out.IsUnknown() {
			category = color.YellowString(out.Category)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetBorder(false)
		table.SetAutoWrapText(true)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.Append([]string{"Category", category})
		table.Append([]string{"Name", name})
		table.Append([]string{"URL", url})
		table.Append([]string{"Comment", services.NormalizeComment(out.Comment, cat)})
		table.Render()
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyName, "name", "", "product name (ProgramName)")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "product description (ProgramDescription)")
	classifyCmd.Flags().StringVar(&classifyLocation, "location", "", "product location (About_Place)")
	classifyCmd.Flags().String("language", "", fmt.Sprintf("catalog language, one of %v (default %s)", models.SupportedLanguages, models.FallbackLanguage))
	_ = classifyCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(classifyCmd)
}
