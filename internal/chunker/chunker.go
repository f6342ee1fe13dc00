package chunker

import (
	"strings"
	"unicode/utf8"
)

// Options controls how text is chunked.
type Options struct {
	MaxTokens int
	Overlap   int
}

// Chunk represents a slice of the document text.
type Chunk struct {
	Index      int
	Page       int // 1-based source page, 0 when unknown
	Text       string
	TokenCount int
}

// Page is the text of one document page.
type Page struct {
	Number int
	Text   string
}

// ChunkText performs a simple token-based sliding window with overlap.
// Tokens are approximated by whitespace-delimited words to avoid heavy dependencies.
func ChunkText(text string, opts Options) []Chunk {
	return appendWindows(nil, 0, strings.Fields(text), normalize(opts))
}

// ChunkPages chunks each page separately so every chunk keeps its page number.
// Indexes run across the whole document.
func ChunkPages(pages []Page, opts Options) []Chunk {
	opts = normalize(opts)
	var chunks []Chunk
	for _, p := range pages {
		chunks = appendWindows(chunks, p.Number, strings.Fields(p.Text), opts)
	}
	return chunks
}

func normalize(opts Options) Options {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 400
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	return opts
}

func appendWindows(chunks []Chunk, page int, words []string, opts Options) []Chunk {
	if len(words) == 0 {
		return chunks
	}

	step := opts.MaxTokens - opts.Overlap
	if step <= 0 {
		step = opts.MaxTokens
	}

	for start := 0; start < len(words); start += step {
		end := start + opts.MaxTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Page:       page,
			Text:       strings.Join(words[start:end], " "),
			TokenCount: end - start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Leading returns the first chunks whose combined token count fits budget.
// At least one chunk is returned when chunks is non-empty.
func Leading(chunks []Chunk, budget int) []Chunk {
	total := 0
	for i, c := range chunks {
		total += c.TokenCount
		if total > budget && i > 0 {
			return chunks[:i]
		}
	}
	return chunks
}

// Join concatenates chunk texts, one per line.
func Join(chunks []Chunk) string {
	var builder strings.Builder
	for _, c := range chunks {
		builder.WriteString(c.Text)
		builder.WriteString("\n")
	}
	return builder.String()
}

// Preview limits text to maxLen bytes, cutting at a word boundary.
func Preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Find last space before maxLen to avoid cutting words
	if idx := strings.LastIndex(s[:maxLen], " "); idx > 0 {
		return s[:idx] + "..."
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
