package jobs

import (
	"github.com/hibiken/asynq"
)

// Queue names used by the worker.
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// Task type identifiers.
const (
	TaskSessionSweep = "session:sweep"
)

// NewSessionSweepTask builds a task that revokes idle sessions.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}
