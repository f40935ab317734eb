package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vouchercat/internal/app"
	"vouchercat/internal/store"
	"vouchercat/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the Asynq worker process that categorizes files enqueued with 'categorize --enqueue'.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := runWorker(appInstance); err != nil {
			log.WithError(err).Error("Worker exited with error")
			return err
		}
		return nil
	},
}

// runWorker runs the asynq server until SIGINT or SIGTERM.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config
	srv := worker.NewServer(cfg)

	var runs store.RunStore
	if appInstance.History != nil {
		runs = appInstance.History
	}
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.CategorizeDeps{
		Processor: appInstance.CategorizationService,
		Runs:      runs,
	})

	log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Stop()
	srv.Shutdown()
	log.Info("Worker shutdown complete.")
	return nil
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
