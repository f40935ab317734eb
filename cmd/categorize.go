package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vouchercat/internal/clix"
	"vouchercat/internal/fileingest"
	"vouchercat/internal/jobs"
	"vouchercat/internal/models"
)

var (
	categorizeChunkSize   int
	categorizeConcurrency int
	categorizeEnqueue     bool
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize <file.csv|dir>",
	Short: "Categorize every row of a voucher CSV file",
	Long: `Detects the file's encoding and language, classifies each row against the
matching catalog and writes <name>_categorized.csv next to the input with
category_id, category_url, category_name and comment columns appended.

Given a directory, every .csv file below it is processed in turn, skipping
previous *_categorized.csv outputs. With --enqueue the files are handed to a
background worker instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		inputs, err := resolveInputs(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if categorizeEnqueue {
			for _, inputPath := range inputs {
				runID, err := appInstance.JobClient.EnqueueCategorizeFile(cmd.Context(), inputPath)
				if err != nil {
					return err
				}
				fmt.Printf("Enqueued %s as run %s\n", inputPath, runID)
			}
			return nil
		}

		svc := appInstance.CategorizationService
		if cmd.Flags().Changed("chunk-size") {
			svc.Options.ChunkSize = categorizeChunkSize
		}
		if cmd.Flags().Changed("concurrency") {
			svc.Options.Concurrency = categorizeConcurrency
		}
		encodings, err := clix.ParseEncodings(cmd.Flags())
		if err != nil {
			return err
		}
		if len(encodings) > 0 {
			svc.Options.Encodings = encodings
		}
		if svc.Options.ChunkSize <= 0 || svc.Options.Concurrency <= 0 {
			return fmt.Errorf("--chunk-size and --concurrency must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appInstance.Jobs.Start()
		for _, inputPath := range inputs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if len(inputs) > 1 {
				fmt.Fprintf(os.Stderr, "== %s\n", inputPath)
			}
			id, events, err := appInstance.Jobs.Submit(inputPath)
			if err != nil {
				return err
			}
			if err := followJob(ctx, appInstance.Jobs, id, events); err != nil {
				return fmt.Errorf("%s: %w", inputPath, err)
			}
		}
		return nil
	},
}

// resolveInputs expands a directory argument into the CSV files below it.
func resolveInputs(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fileingest.DiscoverCSVFiles(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found under %s", path)
	}
	inputs := make([]string, len(files))
	for i, f := range files {
		inputs[i] = f.Path
	}
	return inputs, nil
}

// followJob renders job events until the job finishes. Cancelling ctx
// cancels the job.
func followJob(ctx context.Context, runner *jobs.Runner, id string, events <-chan jobs.Event) error {
	waiting := color.New(color.FgYellow)
	done := ctx.Done()
	for {
		select {
		case <-done:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current chunk...")
			runner.Cancel(id)
			done = nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case jobs.EventStarted:
				fmt.Fprintln(os.Stderr, "Processing...")
			case jobs.EventProgress:
				fmt.Fprintf(os.Stderr, "\rProcessed %d/%d rows (%d%%)", ev.Processed, ev.Total, percent(ev.Processed, ev.Total))
			case jobs.EventWaiting:
				if ev.Waiting {
					waiting.Fprint(os.Stderr, "\rRate limited, waiting before retrying...          ")
				}
			case jobs.EventDone:
				fmt.Fprintln(os.Stderr)
				printRunSummary(ev.Result)
				return nil
			case jobs.EventFailed:
				fmt.Fprintln(os.Stderr)
				return fmt.Errorf("categorization failed: %w", ev.Err)
			}
		}
	}
}

func percent(n, total int) int {
	if total <= 0 {
		return 100
	}
	return n * 100 / total
}

func printRunSummary(res *models.RunResult) {
	if res == nil {
		return
	}
	fmt.Printf("%s %s\n", color.GreenString("Done."), res.OutputPath)
	lang := res.Language
	if res.LanguageFallback {
		lang += color.YellowString(" (not detected, fallback)")
	}
	fmt.Printf("  Encoding:     %s\n", res.Encoding)
	fmt.Printf("  Language:     %s\n", lang)
	fmt.Printf("  Rows:         %d\n", res.Summary.Total)
	fmt.Printf("  Categorized:  %s\n", color.GreenString("%d", res.Summary.Categorized))
	unknown := color.GreenString("%d", res.Summary.Unknown)
	if res.Summary.Unknown > 0 {
		unknown = color.YellowString("%d", res.Summary.Unknown)
	}
	fmt.Printf("  Unknown:      %s\n", unknown)
	if res.CostUSD > 0 {
		fmt.Printf("  Cost:         $%.6f\n", res.CostUSD)
	}
	fmt.Printf("  Run ID:       %s\n", res.RunID)
}

func init() {
	categorizeCmd.Flags().IntVar(&categorizeChunkSize, "chunk-size", 0, "rows per chunk (default from processing.chunk_size)")
	categorizeCmd.Flags().IntVar(&categorizeConcurrency, "concurrency", 0, "maximum in-flight model requests (default from processing.concurrency)")
	categorizeCmd.Flags().String("encodings", "", "comma-separated encodings to try, e.g. utf-8,cp1252")
	categorizeCmd.Flags().BoolVar(&categorizeEnqueue, "enqueue", false, "push the file to the background worker queue instead of processing it here")
	rootCmd.AddCommand(categorizeCmd)
}
