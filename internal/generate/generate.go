// Package generate forwards free-text prompts to a chat model with a system
// instruction chosen by task type.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/llm"
)

var ErrUnavailable = errors.New("generation unavailable")

// TaskType labels the kind of text requested.
type TaskType string

const (
	TaskGeneral     TaskType = "general"
	TaskSummary     TaskType = "summary"
	TaskEmail       TaskType = "email"
	TaskBlog        TaskType = "blog"
	TaskCode        TaskType = "code"
	TaskTranslation TaskType = "translation"
)

var instructions = map[TaskType]string{
	TaskGeneral:     "You are a helpful assistant.",
	TaskSummary:     "You summarize the user's text clearly and concisely.",
	TaskEmail:       "You write professional, friendly emails. Include a subject line.",
	TaskBlog:        "You write engaging blog posts with a title and short sections.",
	TaskCode:        "You are an expert programmer. Reply with working code and brief explanations.",
	TaskTranslation: "You are a professional translator. Translate the text as requested, preserving meaning and tone.",
}

// TaskTypes lists the supported task types in sorted order.
func TaskTypes() []TaskType {
	out := make([]TaskType, 0, len(instructions))
	for t := range instructions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Instruction returns the system instruction for t, falling back to general.
func Instruction(t TaskType) string {
	if s, ok := instructions[t]; ok {
		return s
	}
	return instructions[TaskGeneral]
}

// Request is a generation request as posted to /generate.
type Request struct {
	Prompt   string   `json:"prompt" validate:"required,max=20000"`
	TaskType TaskType `json:"task_type" validate:"omitempty,oneof=general summary email blog code translation"`
	Download bool     `json:"download"`
	Model    string   `json:"model_name,omitempty"`
}

// Generator produces text with an LLM. A nil LLM means no provider key was
// configured.
type Generator struct {
	LLM llm.Client
}

// Generate validates req and returns the model's raw text.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := contract.Validator.Struct(req); err != nil {
		return "", err
	}
	if g == nil || g.LLM == nil {
		return "", ErrUnavailable
	}
	if req.TaskType == "" {
		req.TaskType = TaskGeneral
	}
	out, err := g.LLM.Complete(ctx, Instruction(req.TaskType), req.Prompt, llm.Options{Model: req.Model})
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", req.TaskType, err)
	}
	return out, nil
}
