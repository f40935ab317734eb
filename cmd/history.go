package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vouchercat/internal/clix"
	"vouchercat/internal/models"
)

// historyCmd lists past categorization runs.
var historyCmd = &cobra.Command{
	Use:         "history",
	Short:       "List past categorization runs",
	Args:        cobra.NoArgs,
	Annotations: withMode(modeOffline),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if appInstance.History == nil {
			return fmt.Errorf("run history is disabled (history.enabled=false or the database could not be opened)")
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}
		runs, err := appInstance.History.ListRuns(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("error listing run history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Started", "Status", "Input", "Lang", "Rows", "Unknown", "Cost", "Run ID"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, r := range runs {
			table.Append([]string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				statusText(r.Status),
				r.InputPath,
				r.Language,
				strconv.Itoa(r.Total),
				strconv.Itoa(r.Unknown),
				fmt.Sprintf("$%.4f", r.CostUSD),
				r.ID,
			})
		}
		table.Render()
		return nil
	},
}

func statusText(status string) string {
	switch status {
	case models.JobStatusCompleted:
		return color.GreenString(status)
	case models.JobStatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	historyCmd.Flags().Int("offset", 0, "Number of runs to skip")
	rootCmd.AddCommand(historyCmd)
}
