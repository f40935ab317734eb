package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"vouchercat/internal/models"
)

const (
	// TypeCategorizeFile is the task type for categorizing one CSV file.
	TypeCategorizeFile = "categorize:file"

	// QueueDefault is the queue categorize tasks are pushed to.
	QueueDefault = "default"
)

// CategorizeFilePayload is the JSON body of a TypeCategorizeFile task.
type CategorizeFilePayload struct {
	InputPath string `json:"input_path"`
	RunID     string `json:"run_id,omitempty"`
}

// NewCategorizeFileTask builds a categorize task. The run id doubles as the task id.
func NewCategorizeFileTask(p CategorizeFilePayload, opts ...asynq.Option) (*asynq.Task, error) {
	if p.InputPath == "" {
		return nil, fmt.Errorf("%w: input_path is required", models.ErrValidation)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", TypeCategorizeFile, err)
	}
	if p.RunID != "" {
		opts = append([]asynq.Option{asynq.TaskID(p.RunID)}, opts...)
	}
	return asynq.NewTask(TypeCategorizeFile, b, opts...), nil
}

// ParseCategorizeFilePayload decodes and validates a task payload.
func ParseCategorizeFilePayload(data []byte) (CategorizeFilePayload, error) {
	var p CategorizeFilePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: invalid %s payload: %v", models.ErrValidation, TypeCategorizeFile, err)
	}
	if p.InputPath == "" {
		return p, fmt.Errorf("%w: input_path is required", models.ErrValidation)
	}
	return p, nil
}
