// Package pipeline produces summaries and answers for uploaded documents
// behind the summarize/ask contract.
package pipeline

import (
	"context"
	"errors"

	"pdf-assistant/internal/contract"
)

// Mode names used for cache keys and history records.
const (
	ModeSummarize = "summarize"
	ModeAsk       = "ask"
)

// ErrNoText is returned when the selected pages contain no extractable text.
var ErrNoText = errors.New("no extractable text in the selected pages")

// Pipeline turns a document (and a question) into a result envelope.
type Pipeline interface {
	Summarize(ctx context.Context, doc contract.UploadedDocument, opts contract.Options) (contract.Result, error)
	Ask(ctx context.Context, doc contract.UploadedDocument, question string, opts contract.Options) (contract.Result, error)
}
