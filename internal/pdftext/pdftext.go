// Package pdftext extracts plain text from a page range of a PDF.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrNotPDF    = errors.New("file is not a PDF")
	ErrPageRange = errors.New("page range outside document")
)

// Page is the extracted text of one page.
type Page struct {
	Number int
	Text   string
}

// Extract is the text of a resolved page range.
type Extract struct {
	Text       string
	Pages      []Page
	StartPage  int
	EndPage    int
	TotalPages int
}

// Extractor pulls text out of a page range; start or end of 0 means the
// first or last page.
type Extractor interface {
	Extract(content []byte, start, end int) (Extract, error)
}

// Reader is the default Extractor: pdfcpu validates the document and counts
// pages, ledongthuc/pdf reads the text.
type Reader struct{}

// IsPDF sniffs content for the PDF signature, ignoring any declared type.
func IsPDF(content []byte) bool {
	return mimetype.Detect(content).Is("application/pdf")
}

// PageCount returns the number of pages in a PDF.
func PageCount(content []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(content), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return count, nil
}

// Resolve applies defaults to a requested range and checks it against the
// page count. The end page is clamped to the last page.
func Resolve(start, end, total int) (int, int, error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("%w: document has no pages", ErrPageRange)
	}
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > total {
		return 0, 0, fmt.Errorf("%w: start page %d of %d", ErrPageRange, start, total)
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: end page %d before start page %d", ErrPageRange, end, start)
	}
	return start, end, nil
}

// Extract implements Extractor.
func (Reader) Extract(content []byte, start, end int) (Extract, error) {
	if !IsPDF(content) {
		return Extract{}, ErrNotPDF
	}
	total, err := PageCount(content)
	if err != nil {
		return Extract{}, err
	}
	start, end, err = Resolve(start, end, total)
	if err != nil {
		return Extract{}, err
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Extract{}, fmt.Errorf("open pdf: %w", err)
	}

	var textBuilder strings.Builder
	var pages []Page
	for pageNum := start; pageNum <= end; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		pages = append(pages, Page{Number: pageNum, Text: text})
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return Extract{
		Text:       textBuilder.String(),
		Pages:      pages,
		StartPage:  start,
		EndPage:    end,
		TotalPages: total,
	}, nil
}
