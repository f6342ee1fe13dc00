package embeddings

import (
	"context"
	"math"
	"sort"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder defines the embedding interface.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors are empty, differ in length, or either has zero magnitude.
func CosineSimilarity(a, b Vector) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TopK returns the indexes of the k candidates most similar to query, in
// ascending index order. Ties keep the earlier candidate.
func TopK(query Vector, candidates []Vector, k int) []int {
	if k <= 0 {
		return nil
	}
	idx := make([]int, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		idx[i] = i
		scores[i] = CosineSimilarity(query, c)
	}
	sort.SliceStable(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	sort.Ints(idx)
	return idx
}
