package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vouchercat/internal/clix"
	"vouchercat/internal/store"
)

// costCmd represents the base command for cost operations.
var costCmd = &cobra.Command{
	Use:         "cost",
	Short:       "View AI usage costs",
	Long:        `Provides subcommands to list recorded model calls with their cost and to view totals.`,
	Annotations: withMode(modeOffline),
}

// costListCmd lists recorded model calls.
var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detailed AI usage logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := historyFromContext(cmd)
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		logs, err := history.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list cost logs: %w", err)
		}
		if len(logs) == 0 {
			fmt.Println("No cost logs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTimestamp\tOperation\tProvider\tModel\tIn Tokens\tOut Tokens\tCost\tRun ID")
		fmt.Fprintln(w, "--\t---------\t---------\t--------\t-----\t---------\t----------\t----\t------")
		for _, l := range logs {
			runID := l.RunID
			if runID == "" {
				runID = "N/A"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%.8f\t%s\n",
				l.ID,
				l.Timestamp.Local().Format("2006-01-02 15:04:05"),
				l.Operation,
				l.ProviderName,
				l.ModelName,
				l.InputTokens,
				l.OutputTokens,
				l.Cost,
				runID,
			)
		}
		w.Flush()

		fmt.Printf("\nDisplayed %d logs.\n", len(logs))
		return nil
	},
}

// costSummaryCmd shows totals over calls and completed runs.
var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show total AI costs and token usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := historyFromContext(cmd)
		if err != nil {
			return err
		}

		totalCost, totalInput, totalOutput, err := history.GetUsageSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get cost summary: %w", err)
		}
		runs, err := history.GetRunSummary(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("AI Usage Cost Summary:")
		fmt.Println("----------------------")
		fmt.Printf("Completed runs:      %d\n", runs.Runs)
		fmt.Printf("Rows categorized:    %d\n", runs.Rows)
		fmt.Printf("Total Cost:          $%.6f\n", totalCost)
		fmt.Printf("Total Input Tokens:  %d\n", totalInput)
		fmt.Printf("Total Output Tokens: %d\n", totalOutput)
		fmt.Println("----------------------")
		return nil
	},
}

func historyFromContext(cmd *cobra.Command) (store.HistoryStore, error) {
	appInstance, err := GetAppFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	if appInstance.History == nil {
		return nil, fmt.Errorf("run history is disabled (history.enabled=false or the database could not be opened)")
	}
	return appInstance.History, nil
}

func init() {
	costListCmd.Flags().IntP("limit", "l", 50, "Number of logs to display")
	costListCmd.Flags().IntP("offset", "o", 0, "Number of logs to skip")

	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costSummaryCmd)
	rootCmd.AddCommand(costCmd)
}
