package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/config"
	"vouchercat/internal/models"
	"vouchercat/internal/services"
	"vouchercat/internal/store"
	"vouchercat/internal/tasks"
)

// FileProcessor runs the categorization pipeline under a known run id.
type FileProcessor interface {
	ProcessFileAs(ctx context.Context, runID, inputPath string, obs services.Observer) (*models.RunResult, error)
}

// CategorizeDeps holds what the categorize handler needs.
type CategorizeDeps struct {
	Processor FileProcessor
	Runs      store.RunStore // optional; marks the run as running
}

// RegisterHandlers wires every task type handled by this worker into mux.
func RegisterHandlers(mux *asynq.ServeMux, deps CategorizeDeps) {
	log.Infof("Registering %s handler", tasks.TypeCategorizeFile)
	mux.HandleFunc(tasks.TypeCategorizeFile, HandleCategorizeFile(deps))
}

// HandleCategorizeFile processes one categorize task. Failures that a retry
// cannot fix (bad payload, missing file, bad encoding or columns) skip retry.
func HandleCategorizeFile(deps CategorizeDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := tasks.ParseCategorizeFilePayload(t.Payload())
		if err != nil {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger := log.WithFields(log.Fields{"run_id": p.RunID, "input": p.InputPath})
		logger.Info("Processing categorize task")

		if deps.Runs != nil && p.RunID != "" {
			run := &models.Run{
				ID:        p.RunID,
				InputPath: p.InputPath,
				Status:    models.JobStatusRunning,
				StartedAt: time.Now().UTC(),
			}
			if err := deps.Runs.RecordRun(ctx, run); err != nil {
				logger.WithError(err).Warn("Failed to mark run as running")
			}
		}

		var lastLogged int
		obs := services.Observer{
			OnProgress: func(processed, total int) {
				if processed-lastLogged >= 500 || processed == total {
					logger.Infof("Progress %d/%d", processed, total)
					lastLogged = processed
				}
			},
		}
		res, err := deps.Processor.ProcessFileAs(ctx, p.RunID, p.InputPath, obs)
		if err != nil {
			if permanent(err) {
				return fmt.Errorf("categorize %s: %w: %w", p.InputPath, err, asynq.SkipRetry)
			}
			return fmt.Errorf("categorize %s: %w", p.InputPath, err)
		}
		logger.WithFields(log.Fields{
			"total":   res.Summary.Total,
			"unknown": res.Summary.Unknown,
			"output":  res.OutputPath,
		}).Info("Categorize task completed")
		return nil
	}
}

func permanent(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrEncoding) ||
		errors.Is(err, models.ErrConfig) ||
		errors.Is(err, fs.ErrNotExist)
}

// NewServer builds the asynq server from the worker and redis settings.
func NewServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			Logger:      log.StandardLogger(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithFields(log.Fields{
					"type":    task.Type(),
					"payload": string(task.Payload()),
				}).WithError(err).Error("Asynq task failed")
			}),
		},
	)
}

// RedisOpt is the redis connection shared by the server and the job client.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}
