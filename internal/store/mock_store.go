package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"pdf-assistant/internal/history"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveInteraction(ctx context.Context, it history.Interaction) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

func (m *MockStore) GetInteraction(ctx context.Context, id uuid.UUID) (history.Interaction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(history.Interaction), args.Error(1)
}

func (m *MockStore) ListInteractions(ctx context.Context, limit int) ([]history.Interaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Interaction), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
