package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"pdf-assistant/internal/contract"
)

// Cache provides pipeline result caching
type Cache interface {
	// GetResult retrieves a cached result by key
	// Returns nil if not found
	GetResult(ctx context.Context, key string) (*contract.Result, error)

	// SetResult stores a result with TTL
	SetResult(ctx context.Context, key string, result *contract.Result, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// entry is the stored form of a result; the wire envelope drops the version.
type entry struct {
	Version   contract.Version `json:"version"`
	Text      string           `json:"text"`
	Language  string           `json:"language,omitempty"`
	Citations []string         `json:"citations,omitempty"`
}

func toEntry(r *contract.Result) entry {
	return entry{Version: r.Version, Text: r.Text, Language: r.Language, Citations: r.Citations}
}

func (e entry) result() *contract.Result {
	return &contract.Result{Version: e.Version, Text: e.Text, Language: e.Language, Citations: e.Citations}
}

// GenerateCacheKey derives a key from the document bytes and everything that
// influences the result.
func GenerateCacheKey(mode string, content []byte, question string, opts contract.Options) string {
	docSum := sha256.Sum256(content)
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write(docSum[:])
	h.Write([]byte{0})
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(opts.Values().Encode()))
	return hex.EncodeToString(h.Sum(nil))
}
