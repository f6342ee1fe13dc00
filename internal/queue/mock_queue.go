package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue records enqueued tasks; set expectations with On as usual.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, task Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	return m.Called(ctx, taskType, handler).Error(0)
}

// Enqueued returns the tasks of the given type passed to Enqueue, oldest first.
func (m *MockQueue) Enqueued(taskType TaskType) []Task {
	var tasks []Task
	for _, call := range m.Calls {
		if call.Method != "Enqueue" {
			continue
		}
		if task, ok := call.Arguments.Get(1).(Task); ok && task.Type == taskType {
			tasks = append(tasks, task)
		}
	}
	return tasks
}
