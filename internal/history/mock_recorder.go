package history

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRecorder is a mock implementation of Recorder using testify/mock.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, it Interaction) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}
