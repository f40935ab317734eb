package models

// Job and run status values shared by the job runner, the worker and the history store.
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
