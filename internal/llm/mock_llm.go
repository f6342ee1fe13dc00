package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Summarize(ctx context.Context, text string, opts Options) (Reply, error) {
	args := m.Called(ctx, text, opts)
	return args.Get(0).(Reply), args.Error(1)
}

func (m *MockClient) Answer(ctx context.Context, question, context string, opts Options) (Reply, error) {
	args := m.Called(ctx, question, context, opts)
	return args.Get(0).(Reply), args.Error(1)
}

func (m *MockClient) Complete(ctx context.Context, system, prompt string, opts Options) (string, error) {
	args := m.Called(ctx, system, prompt, opts)
	return args.String(0), args.Error(1)
}
