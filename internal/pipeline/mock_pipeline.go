package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pdf-assistant/internal/contract"
)

// MockPipeline is a mock implementation of Pipeline using testify/mock.
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Summarize(ctx context.Context, doc contract.UploadedDocument, opts contract.Options) (contract.Result, error) {
	args := m.Called(ctx, doc, opts)
	return args.Get(0).(contract.Result), args.Error(1)
}

func (m *MockPipeline) Ask(ctx context.Context, doc contract.UploadedDocument, question string, opts contract.Options) (contract.Result, error) {
	args := m.Called(ctx, doc, question, opts)
	return args.Get(0).(contract.Result), args.Error(1)
}
