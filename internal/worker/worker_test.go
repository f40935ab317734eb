package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouchercat/internal/config"
	"vouchercat/internal/models"
	"vouchercat/internal/services"
	"vouchercat/internal/tasks"
)

type fakeProcessor struct {
	runID, path string
	err         error
}

func (f *fakeProcessor) ProcessFileAs(ctx context.Context, runID, inputPath string, obs services.Observer) (*models.RunResult, error) {
	f.runID, f.path = runID, inputPath
	if f.err != nil {
		return nil, f.err
	}
	if obs.OnProgress != nil {
		obs.OnProgress(3, 3)
	}
	return &models.RunResult{RunID: runID, OutputPath: "out.csv", Summary: models.Summary{Total: 3, Categorized: 3}}, nil
}

func newTask(t *testing.T, path, runID string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewCategorizeFileTask(tasks.CategorizeFilePayload{InputPath: path, RunID: runID})
	require.NoError(t, err)
	return task
}

func TestRegisterHandlers_RoutesCategorizeTask(t *testing.T) {
	proc := &fakeProcessor{}
	mux := asynq.NewServeMux()
	RegisterHandlers(mux, CategorizeDeps{Processor: proc})

	require.NoError(t, mux.ProcessTask(context.Background(), newTask(t, "/data/in.csv", "run-1")))
	assert.Equal(t, "run-1", proc.runID)
	assert.Equal(t, "/data/in.csv", proc.path)
}

func TestHandleCategorizeFile_SkipsRetryForPermanentErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		skip bool
	}{
		{name: "missing columns", err: &models.MissingColumnsError{Missing: []string{"About_Place"}}, skip: true},
		{name: "encoding", err: fmt.Errorf("%w for x.csv", models.ErrEncoding), skip: true},
		{name: "missing file", err: fmt.Errorf("failed to open x.csv: %w", os.ErrNotExist), skip: true},
		{name: "write failure", err: errors.New("disk full"), skip: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := HandleCategorizeFile(CategorizeDeps{Processor: &fakeProcessor{err: tc.err}})
			err := handler(context.Background(), newTask(t, "/data/in.csv", "run-1"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.skip, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestHandleCategorizeFile_BadPayload(t *testing.T) {
	proc := &fakeProcessor{}
	handler := HandleCategorizeFile(CategorizeDeps{Processor: proc})
	err := handler(context.Background(), asynq.NewTask(tasks.TypeCategorizeFile, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, proc.path)
}

func TestRedisOpt(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Address = "redis:6379"
	cfg.Redis.DB = 2
	opt := RedisOpt(cfg)
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
