package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"pdf-assistant/internal/retry"
)

const (
	subjectPrefix      = "pdfassistant.tasks."
	defaultMaxAttempts = 5
)

// Publisher is the part of *nats.Conn the queue needs to publish.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NewNATS constructs a thin NATS-based queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc, pub: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
	pub Publisher
}

// Subject is the NATS subject tasks of type t are published on.
func Subject(t TaskType) string {
	return subjectPrefix + string(t)
}

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return errors.New("task type required")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.pub.Publish(Subject(task.Type), body)
}

func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	if q.nc == nil {
		return errors.New("nats connection required for workers")
	}
	group := "workers-" + string(taskType)
	sub, err := q.nc.QueueSubscribe(Subject(taskType), group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return err
	}
	q.log.Info("worker subscribed", "subject", Subject(taskType), "group", group)
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handleMessage(ctx context.Context, data []byte, handler Handler) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		return
	}

	if wait := time.Until(task.NotBefore); wait > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	if err := handler(ctx, task); err != nil {
		q.retryTask(ctx, task, err)
	}
}

func (q *natsQueue) retryTask(ctx context.Context, task Task, handlerErr error) {
	task.Attempts++
	if task.MaxAttempts == 0 {
		task.MaxAttempts = defaultMaxAttempts
	}

	if task.Attempts >= task.MaxAttempts {
		q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "attempts", task.Attempts, "original_err", handlerErr)
		return
	}
	task.NotBefore = time.Now().Add(retry.ExponentialBackoff(task.Attempts, time.Second))
	if err := q.Enqueue(ctx, task); err != nil {
		q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "original_err", handlerErr, "enqueue_err", err)
		return
	}
	q.log.Warn("task failed, re-enqueued", "id", task.ID, "type", task.Type, "attempt", task.Attempts, "not_before", task.NotBefore, "err", handlerErr)
}
