package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pdf-assistant/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

// TaskTypeRecord carries one interaction to the history recorder.
const TaskTypeRecord TaskType = "record"

// Task is a unit of work published to a subject per task type.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// NewTask marshals payload into a task of type t.
func NewTask(t TaskType, payload any) (Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{ID: uuid.New(), Type: t, Payload: body}, nil
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = q.Enqueue(ctx, task); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if sleepErr := retry.Sleep(ctx, attempt, base); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}
