package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdf-assistant/internal/contract"
)

// Mode selects the endpoint a document request goes to.
type Mode int

const (
	ModeSummarize Mode = iota
	ModeAsk
)

// Endpoint returns the path for m.
func (m Mode) Endpoint() string {
	if m == ModeAsk {
		return contract.PathAsk
	}
	return contract.PathSummarize
}

func (m Mode) String() string {
	if m == ModeAsk {
		return "ask"
	}
	return "summarize"
}

// State classifies the outcome of a document request.
type State int

const (
	// StateSkipped means nothing was sent: no file, or an ask without a question.
	StateSkipped State = iota
	StateSuccess
	StateError
	// StateUnexpectedFormat is a 2xx response with neither an answer nor a summary.
	StateUnexpectedFormat
)

func (s State) String() string {
	switch s {
	case StateSkipped:
		return "skipped"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateUnexpectedFormat:
		return "unexpected_format"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request is one summarize or ask action.
type Request struct {
	Mode     Mode
	Document *contract.UploadedDocument
	Question string
	Options  contract.Options
}

// Outcome is the classified result of Run.
type Outcome struct {
	State      State
	Result     contract.Result
	Message    string
	StatusCode int
}

// Run submits req and classifies the response. Failures the server or the
// network report are folded into the Outcome; the returned error is only
// set for requests that were never sent because their options are invalid,
// or when ctx is cancelled.
func (c *Client) Run(ctx context.Context, req Request) (Outcome, error) {
	if req.Document == nil {
		return Outcome{State: StateSkipped}, nil
	}
	if req.Mode == ModeAsk && strings.TrimSpace(req.Question) == "" {
		return Outcome{State: StateSkipped}, nil
	}
	if err := req.Options.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("invalid options: %s", strings.Join(contract.Describe(err), "; "))
	}

	fields := req.Options.Values()
	if req.Mode == ModeAsk {
		fields.Set(contract.FieldQuestion, req.Question)
	}
	p, err := multipartPayload(req.Document, contract.PDFContentType, fields)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.gated(ctx, "POST", req.Mode.Endpoint(), p)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Outcome{State: StateError, Message: apiErr.Message, StatusCode: apiErr.StatusCode}, nil
		}
		return Outcome{State: StateError, Message: err.Error()}, nil
	}
	return classify(resp), nil
}

func classify(resp response) Outcome {
	if !resp.ok() {
		apiErr := newAPIError(resp.status, resp.body, resp.url)
		return Outcome{State: StateError, Message: apiErr.Message, StatusCode: resp.status}
	}
	res, err := contract.Decode(resp.body, contract.ParseVersion(resp.header.Get(contract.VersionHeader)))
	if err != nil {
		return Outcome{State: StateUnexpectedFormat, StatusCode: resp.status}
	}
	return Outcome{State: StateSuccess, Result: res, StatusCode: resp.status}
}
