package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
	"vouchercat/internal/tasks"
)

// Enqueuer is the part of *asynq.Client the job client uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqJobClient enqueues categorize tasks and records them as enqueued runs.
type AsynqJobClient struct {
	client Enqueuer
	runs   RunStore // optional
}

var _ JobClient = (*AsynqJobClient)(nil)

// NewAsynqJobClient connects to Redis with opt. runs may be nil.
func NewAsynqJobClient(opt asynq.RedisClientOpt, runs RunStore) *AsynqJobClient {
	return NewAsynqJobClientWith(asynq.NewClient(opt), runs)
}

// NewAsynqJobClientWith wraps an existing enqueuer.
func NewAsynqJobClientWith(client Enqueuer, runs RunStore) *AsynqJobClient {
	return &AsynqJobClient{client: client, runs: runs}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// EnqueueCategorizeFile pushes a categorize task for inputPath. The returned
// run id is used by the worker for its history record.
func (jc *AsynqJobClient) EnqueueCategorizeFile(ctx context.Context, inputPath string) (string, error) {
	runID := uuid.NewString()
	task, err := tasks.NewCategorizeFileTask(tasks.CategorizeFilePayload{InputPath: inputPath, RunID: runID})
	if err != nil {
		return "", err
	}

	log.Debugf("Enqueuing task type '%s' for %s", task.Type(), inputPath)
	info, err := jc.client.EnqueueContext(ctx, task, asynq.Queue(tasks.QueueDefault))
	if err != nil {
		return "", fmt.Errorf("enqueue categorize job for %s: %w", inputPath, err)
	}
	log.WithFields(log.Fields{"task_id": info.ID, "queue": info.Queue}).Info("Enqueued categorize task")

	if jc.runs != nil {
		run := &models.Run{
			ID:        runID,
			InputPath: inputPath,
			Status:    models.JobStatusEnqueued,
			StartedAt: time.Now().UTC(),
		}
		if err := jc.runs.RecordRun(ctx, run); err != nil {
			// The job is already queued; the worker will overwrite the record.
			log.WithError(err).Errorf("Failed to record enqueued run %s", runID)
		}
	}
	return runID, nil
}
