package pipeline

import (
	"context"
	"fmt"

	"pdf-assistant/internal/contract"
)

// Stub ignores document content and returns deterministic placeholders in
// the original envelope shapes.
type Stub struct{}

func (Stub) Summarize(_ context.Context, doc contract.UploadedDocument, _ contract.Options) (contract.Result, error) {
	return contract.Summary(fmt.Sprintf("This is a summary of %s.", doc.Filename)), nil
}

func (Stub) Ask(_ context.Context, doc contract.UploadedDocument, question string, _ contract.Options) (contract.Result, error) {
	return contract.Answer(fmt.Sprintf("You asked: '%s' based on %s.", question, doc.Filename), "", nil), nil
}
