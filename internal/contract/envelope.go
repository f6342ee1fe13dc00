package contract

import (
	"encoding/json"
	"errors"
	"strconv"
)

// VersionHeader carries the envelope schema version on every result response.
const VersionHeader = "X-Envelope-Version"

// DefaultLanguage is reported when a result does not name its language.
const DefaultLanguage = "unknown"

// ErrUnexpectedFormat is returned when a successful response carries neither
// an answer nor a summary.
var ErrUnexpectedFormat = errors.New("unexpected response format")

// Version tags which envelope schema a Result uses.
type Version int

const (
	VersionUnknown Version = iota
	// VersionSummary is the original schema: {"summary": string}.
	VersionSummary
	// VersionAnswer is the evolved schema:
	// {"answer": string, "language"?: string, "citations"?: [string]}.
	VersionAnswer
)

// String returns the header form of v.
func (v Version) String() string {
	return strconv.Itoa(int(v))
}

// ParseVersion reads a VersionHeader value; unknown values map to VersionUnknown.
func ParseVersion(s string) Version {
	switch s {
	case "1":
		return VersionSummary
	case "2":
		return VersionAnswer
	default:
		return VersionUnknown
	}
}

// Result is the decoded result envelope.
type Result struct {
	Version   Version
	Text      string
	Language  string
	Citations []string
}

// Summary builds a VersionSummary result.
func Summary(text string) Result {
	return Result{Version: VersionSummary, Text: text}
}

// Answer builds a VersionAnswer result. Empty language and nil citations are
// omitted on the wire.
func Answer(text, language string, citations []string) Result {
	return Result{Version: VersionAnswer, Text: text, Language: language, Citations: citations}
}

type summaryWire struct {
	Summary string `json:"summary"`
}

type answerWire struct {
	Answer    string   `json:"answer"`
	Language  string   `json:"language,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

type keyedWire struct {
	Summary   *string  `json:"summary"`
	Answer    *string  `json:"answer"`
	Language  *string  `json:"language"`
	Citations []string `json:"citations"`
}

// MarshalJSON encodes r in the schema named by its version.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Version {
	case VersionSummary:
		return json.Marshal(summaryWire{Summary: r.Text})
	case VersionAnswer:
		return json.Marshal(answerWire{Answer: r.Text, Language: r.Language, Citations: r.Citations})
	default:
		return nil, errors.New("contract: result has no envelope version")
	}
}

// Decode parses a successful response body. When version is known (from
// VersionHeader) only that schema's key is accepted; otherwise the evolved
// key is tried before the original one. A body that is not a JSON object or
// lacks the expected key yields ErrUnexpectedFormat.
func Decode(body []byte, version Version) (Result, error) {
	var w keyedWire
	if err := json.Unmarshal(body, &w); err != nil {
		return Result{}, ErrUnexpectedFormat
	}

	res := Result{Citations: w.Citations}
	if w.Language != nil {
		res.Language = *w.Language
	}

	switch {
	case version == VersionAnswer && w.Answer != nil,
		version == VersionUnknown && w.Answer != nil:
		res.Version = VersionAnswer
		res.Text = *w.Answer
	case version == VersionSummary && w.Summary != nil,
		version == VersionUnknown && w.Summary != nil:
		res.Version = VersionSummary
		res.Text = *w.Summary
	default:
		return Result{}, ErrUnexpectedFormat
	}
	return res, nil
}
