// Package convert turns PDFs into Word documents and back by calling an
// external converter inside a per-request temporary workspace.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"pdf-assistant/internal/contract"
)

var (
	ErrUnsupportedDirection = errors.New("unsupported conversion direction")
	ErrInputType            = errors.New("file type does not match conversion direction")
	ErrConverter            = errors.New("conversion failed")
)

// Direction names a conversion.
type Direction string

const (
	PDFToDOCX Direction = "pdf2docx"
	DOCXToPDF Direction = "docx2pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
)

// ParseDirection accepts "pdf2docx" or "docx2pdf", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case PDFToDOCX, DOCXToPDF:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDirection, s)
	}
}

// InputExt is the extension given to the uploaded file.
func (d Direction) InputExt() string {
	if d == PDFToDOCX {
		return ".pdf"
	}
	return ".docx"
}

// OutputExt is the extension of the converted file.
func (d Direction) OutputExt() string {
	if d == PDFToDOCX {
		return ".docx"
	}
	return ".pdf"
}

// ContentType is the media type of the converted file.
func (d Direction) ContentType() string {
	if d == PDFToDOCX {
		return mimeDOCX
	}
	return mimePDF
}

// accepts reports whether content looks like a valid input for d.
func (d Direction) accepts(content []byte) bool {
	mt := mimetype.Detect(content)
	if d == PDFToDOCX {
		return mt.Is(mimePDF)
	}
	return mt.Is(mimeDOCX) || mt.Is(mimeDOC)
}

// Converter converts inputPath and writes the result into outDir, returning
// the path of the produced file.
type Converter interface {
	Convert(ctx context.Context, d Direction, inputPath, outDir string) (string, error)
}

// Result is a converted document ready for download.
type Result struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Service runs conversions, each in its own workspace under TempDir.
type Service struct {
	Converter Converter
	// TempDir is the parent of per-request workspaces; empty means os.TempDir.
	TempDir string
}

// Convert converts doc in direction d. The workspace is removed before
// Convert returns, whatever the outcome.
func (s *Service) Convert(ctx context.Context, d Direction, doc contract.UploadedDocument) (Result, error) {
	if _, err := ParseDirection(string(d)); err != nil {
		return Result{}, err
	}
	if !d.accepts(doc.Content) {
		return Result{}, fmt.Errorf("%w: %s needs a %s file", ErrInputType, d, strings.TrimPrefix(d.InputExt(), "."))
	}

	work, err := os.MkdirTemp(s.TempDir, "convert-*")
	if err != nil {
		return Result{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(work)

	input := filepath.Join(work, uuid.NewString()+d.InputExt())
	if err := os.WriteFile(input, doc.Content, 0o600); err != nil {
		return Result{}, fmt.Errorf("write input: %w", err)
	}
	outDir := filepath.Join(work, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	output, err := s.Converter.Convert(ctx, d, input, outDir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrConverter, err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read output: %w", ErrConverter, err)
	}

	return Result{
		Filename:    OutputName(doc.Filename, d),
		ContentType: d.ContentType(),
		Content:     data,
	}, nil
}

// OutputName derives the download name from the uploaded name.
func OutputName(uploaded string, d Direction) string {
	base := filepath.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(stem)
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}
	return stem + d.OutputExt()
}
