package store

import (
	"context"

	"vouchercat/internal/models"
)

// --- Job Client ---

type JobClient interface {
	// EnqueueCategorizeFile queues inputPath for a worker and returns the run id
	// the worker will record under.
	EnqueueCategorizeFile(ctx context.Context, inputPath string) (string, error)
	Close() error
}

// --- Run History Store ---

type RunStore interface {
	// RecordRun inserts run or replaces the row with the same ID.
	RecordRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)
	GetRunSummary(ctx context.Context) (*models.UsageSummary, error)

	Ping(ctx context.Context) error
	Close() error
}

// --- Cost Tracking Store ---

type CostTrackingStore interface {
	RecordUsage(ctx context.Context, entry *models.UsageLog) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.UsageLog, error)
	GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error)
}

// HistoryStore is everything the SQLite history database provides.
type HistoryStore interface {
	RunStore
	CostTrackingStore
}
