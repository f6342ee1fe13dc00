package translate

import (
	"context"

	"github.com/stretchr/testify/mock"
	"golang.org/x/text/language"
)

// MockTranslator is a mock implementation of Translator using testify/mock.
type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	args := m.Called(ctx, text, target)
	return args.String(0), args.Error(1)
}
