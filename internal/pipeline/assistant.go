package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdf-assistant/internal/cache"
	"pdf-assistant/internal/chunker"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/embeddings"
	"pdf-assistant/internal/llm"
	"pdf-assistant/internal/pdftext"
)

const (
	chunkTokens     = 400
	chunkOverlap    = 80
	summaryBudget   = 3000 // words of context sent for a summary
	answerChunks    = 4
	maxRankedChunks = 256
	previewLength   = 150
)

// Assistant answers from the document text with an LLM. Embedder and Cache
// are optional.
type Assistant struct {
	Extractor pdftext.Extractor
	LLM       llm.Client
	Embedder  embeddings.Embedder
	Cache     cache.Cache
	CacheTTL  time.Duration
	Log       *slog.Logger
}

func (a *Assistant) Summarize(ctx context.Context, doc contract.UploadedDocument, opts contract.Options) (contract.Result, error) {
	key := cache.GenerateCacheKey(ModeSummarize, doc.Content, "", opts)
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	chunks, err := a.chunks(doc, opts)
	if err != nil {
		return contract.Result{}, err
	}
	reply, err := a.LLM.Summarize(ctx, chunker.Join(chunker.Leading(chunks, summaryBudget)), llmOptions(opts))
	if err != nil {
		return contract.Result{}, fmt.Errorf("summarize: %w", err)
	}

	res := contract.Answer(reply.Text, languageOrDefault(reply.Language), nil)
	a.store(ctx, key, res)
	return res, nil
}

func (a *Assistant) Ask(ctx context.Context, doc contract.UploadedDocument, question string, opts contract.Options) (contract.Result, error) {
	key := cache.GenerateCacheKey(ModeAsk, doc.Content, question, opts)
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	chunks, err := a.chunks(doc, opts)
	if err != nil {
		return contract.Result{}, err
	}
	selected := a.rank(ctx, question, chunks)
	reply, err := a.LLM.Answer(ctx, question, chunker.Join(selected), llmOptions(opts))
	if err != nil {
		return contract.Result{}, fmt.Errorf("answer: %w", err)
	}

	res := contract.Answer(reply.Text, languageOrDefault(reply.Language), citations(selected))
	a.store(ctx, key, res)
	return res, nil
}

func (a *Assistant) chunks(doc contract.UploadedDocument, opts contract.Options) ([]chunker.Chunk, error) {
	ext, err := a.Extractor.Extract(doc.Content, opts.StartPage, opts.EndPage)
	if err != nil {
		return nil, err
	}
	pages := make([]chunker.Page, len(ext.Pages))
	for i, p := range ext.Pages {
		pages[i] = chunker.Page{Number: p.Number, Text: p.Text}
	}
	chunks := chunker.ChunkPages(pages, chunker.Options{MaxTokens: chunkTokens, Overlap: chunkOverlap})
	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	return chunks, nil
}

// rank picks the chunks most similar to the question, returned in document
// order. Without an embedder, or when embedding fails, the leading chunks are used.
func (a *Assistant) rank(ctx context.Context, question string, chunks []chunker.Chunk) []chunker.Chunk {
	if len(chunks) <= answerChunks || a.Embedder == nil {
		return firstN(chunks, answerChunks)
	}
	candidates := firstN(chunks, maxRankedChunks)

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, question)
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	vecs, err := a.Embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		a.logger().Warn("chunk ranking failed, using leading chunks", "err", err)
		return firstN(chunks, answerChunks)
	}

	selected := make([]chunker.Chunk, 0, answerChunks)
	for _, i := range embeddings.TopK(vecs[0], vecs[1:], answerChunks) {
		selected = append(selected, candidates[i])
	}
	return selected
}

func (a *Assistant) cached(ctx context.Context, key string) (contract.Result, bool) {
	if a.Cache == nil {
		return contract.Result{}, false
	}
	res, err := a.Cache.GetResult(ctx, key)
	if err != nil {
		a.logger().Warn("cache read failed", "err", err)
		return contract.Result{}, false
	}
	if res == nil {
		return contract.Result{}, false
	}
	a.logger().Debug("cache hit", "key", key[:12])
	return *res, true
}

func (a *Assistant) store(ctx context.Context, key string, res contract.Result) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.SetResult(ctx, key, &res, a.CacheTTL); err != nil {
		// Log cache write failure but don't fail the request
		a.logger().Warn("failed to cache result", "err", err)
	}
}

func (a *Assistant) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func llmOptions(opts contract.Options) llm.Options {
	return llm.Options{
		Model:           opts.ModelName,
		Temperature:     opts.Temperature,
		AllowNonEnglish: opts.NonEnglishAllowed(),
	}
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return contract.DefaultLanguage
	}
	return lang
}

func citations(chunks []chunker.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, fmt.Sprintf("p. %d: %s", c.Page, chunker.Preview(c.Text, previewLength)))
	}
	return out
}

func firstN(chunks []chunker.Chunk, n int) []chunker.Chunk {
	if len(chunks) <= n {
		return chunks
	}
	return chunks[:n]
}
