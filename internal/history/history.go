// Package history records completed summarize and ask interactions. The
// server publishes records to the queue; the recorder worker persists them.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/queue"
)

const (
	enqueueAttempts = 3
	enqueueBase     = 200 * time.Millisecond
)

// Interaction is one answered request.
type Interaction struct {
	ID        uuid.UUID `json:"id"`
	Mode      string    `json:"mode" validate:"required,oneof=summarize ask"`
	Filename  string    `json:"filename"`
	Question  string    `json:"question,omitempty"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	Citations []string  `json:"citations,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromResult builds an interaction from a served result.
func FromResult(mode, filename, question string, res contract.Result, model string) Interaction {
	return Interaction{
		ID:        uuid.New(),
		Mode:      mode,
		Filename:  filename,
		Question:  question,
		Text:      res.Text,
		Language:  res.Language,
		Citations: res.Citations,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// Recorder accepts interactions for storage.
type Recorder interface {
	Record(ctx context.Context, it Interaction) error
}

// NopRecorder discards interactions.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Interaction) error { return nil }

// QueueRecorder publishes interactions as record tasks.
type QueueRecorder struct {
	Queue queue.Queue
}

func (r *QueueRecorder) Record(ctx context.Context, it Interaction) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	task, err := queue.NewTask(queue.TaskTypeRecord, it)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	task.ID = it.ID
	return queue.EnqueueWithRetry(ctx, r.Queue, task, enqueueAttempts, enqueueBase)
}

// Saver persists interactions.
type Saver interface {
	SaveInteraction(ctx context.Context, it Interaction) error
}

// ErrInvalidRecord marks payloads that can never be stored.
var ErrInvalidRecord = errors.New("invalid interaction record")

// Persist returns a queue handler that decodes record tasks and saves them.
func Persist(s Saver) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var it Interaction
		if err := json.Unmarshal(task.Payload, &it); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		if err := contract.Validator.Struct(it); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		if it.ID == uuid.Nil {
			it.ID = task.ID
		}
		return s.SaveInteraction(ctx, it)
	}
}
