package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryWarmup is the task type for pre-populating analytics caches.
	TaskInventoryWarmup = "inventory:analytics_warmup"
)

// WarmupPayload describes one warmup run.
type WarmupPayload struct {
	// Year scopes the monthly movement series; zero means the current year.
	Year int `json:"year,omitempty"`
}

// NewWarmupTask constructs an Asynq task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryWarmup, data), nil
}
