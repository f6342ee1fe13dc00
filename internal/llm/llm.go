package llm

import (
	"context"
	"strings"
)

// Options tune a single completion.
type Options struct {
	// Model overrides the client's default model when non-empty.
	Model string
	// Temperature overrides the default sampling temperature when non-nil.
	Temperature *float64
	// AllowNonEnglish lets the model answer in the document's language.
	AllowNonEnglish bool
}

// Reply is a model response together with the language it was written in.
type Reply struct {
	Text     string
	Language string
}

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	Summarize(ctx context.Context, text string, opts Options) (Reply, error)
	Answer(ctx context.Context, question, context string, opts Options) (Reply, error)
	Complete(ctx context.Context, system, prompt string, opts Options) (string, error)
}

const languagePrefix = "language:"

// splitLanguage removes a trailing "Language: xx" line from a model response
// and returns the remaining text and the tag. The tag is empty when absent.
func splitLanguage(content string) (string, string) {
	content = strings.TrimSpace(content)
	idx := strings.LastIndex(content, "\n")
	last := strings.Trim(strings.TrimSpace(content[idx+1:]), "*_` ")
	if !strings.HasPrefix(strings.ToLower(last), languagePrefix) {
		return content, ""
	}
	lang := strings.Trim(last[len(languagePrefix):], "*_`. ")
	if idx < 0 {
		return "", lang
	}
	return strings.TrimSpace(content[:idx]), lang
}

func languageInstruction(allowNonEnglish bool) string {
	if allowNonEnglish {
		return "Respond in the language of the document."
	}
	return "Always respond in English."
}
