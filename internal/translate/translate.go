// Package translate extracts a page range of a PDF and hands the text to a
// translator, returning original and translated text side by side.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/llm"
	"pdf-assistant/internal/pdftext"
)

var (
	ErrLanguage   = errors.New("unsupported target language")
	ErrNoText     = errors.New("no extractable text in the selected pages")
	ErrTranslator = errors.New("translation failed")
)

// Translator renders text in a target language.
type Translator interface {
	Translate(ctx context.Context, text string, target language.Tag) (string, error)
}

// Request selects the pages and the target language.
type Request struct {
	Content   []byte `form:"file" validate:"required"`
	StartPage int    `form:"start_page" validate:"omitempty,min=1"`
	EndPage   int    `form:"end_page" validate:"omitempty,min=1"`
	Target    string `form:"target_lang" validate:"required"`
}

// Result is a translated page range.
type Result struct {
	Original       string `json:"original"`
	Translated     string `json:"translated"`
	TargetLanguage string `json:"target_language"`
	LanguageName   string `json:"language_name"`
	StartPage      int    `json:"start_page"`
	EndPage        int    `json:"end_page"`
	Truncated      bool   `json:"truncated,omitempty"`
}

// Service runs translations.
type Service struct {
	Extractor  pdftext.Extractor
	Translator Translator
	// MaxChars bounds the text sent to the translator; 0 means no limit.
	MaxChars int
}

// ParseTarget validates a BCP 47 code and returns its tag and English name.
func ParseTarget(code string) (language.Tag, string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, "", fmt.Errorf("%w: empty code", ErrLanguage)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, "", fmt.Errorf("%w: %q", ErrLanguage, code)
	}
	if _, conf := tag.Base(); conf == language.No {
		return language.Und, "", fmt.Errorf("%w: %q", ErrLanguage, code)
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		name = tag.String()
	}
	return tag, name, nil
}

// Translate extracts the requested range and translates it.
func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	if err := contract.Validator.Struct(req); err != nil {
		return Result{}, err
	}
	if req.EndPage != 0 && req.StartPage > req.EndPage {
		return Result{}, fmt.Errorf("%w: end page %d before start page %d", pdftext.ErrPageRange, req.EndPage, req.StartPage)
	}
	tag, name, err := ParseTarget(req.Target)
	if err != nil {
		return Result{}, err
	}

	ext, err := s.Extractor.Extract(req.Content, req.StartPage, req.EndPage)
	if err != nil {
		return Result{}, err
	}
	original := strings.TrimSpace(ext.Text)
	if original == "" {
		return Result{}, ErrNoText
	}
	original, truncated := truncate(original, s.MaxChars)

	translated, err := s.Translator.Translate(ctx, original, tag)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTranslator, err)
	}

	return Result{
		Original:       original,
		Translated:     strings.TrimSpace(translated),
		TargetLanguage: tag.String(),
		LanguageName:   name,
		StartPage:      ext.StartPage,
		EndPage:        ext.EndPage,
		Truncated:      truncated,
	}, nil
}

func truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	return string(runes[:maxChars]), true
}

// LLMTranslator translates with a chat completion.
type LLMTranslator struct {
	LLM   llm.Client
	Model string
}

func (t *LLMTranslator) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	system := fmt.Sprintf("Translate the user's text into %s (%s). Preserve paragraphs and line breaks. Reply with the translation only.",
		display.English.Tags().Name(target), target)
	return t.LLM.Complete(ctx, system, text, llm.Options{Model: t.Model})
}
