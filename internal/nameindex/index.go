// Package nameindex resolves loosely typed project and resource names to the
// exact values stored in the table using embedding similarity.
package nameindex

import (
	"context"
	"math"
	"strings"

	"github.com/kyleking/timesheet-sql/internal/embedding"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
)

// DefaultThreshold is the minimum similarity for a confident match
const DefaultThreshold = 0.45

// Match is the outcome of a nearest-name lookup
type Match struct {
	Query     string  `json:"query"`
	Name      string  `json:"name,omitempty"`
	Score     float64 `json:"score"`
	Confident bool    `json:"confident"`
}

// Value is the matched name when confident and the original query otherwise
func (m Match) Value() string {
	if m.Confident {
		return m.Name
	}

	return m.Query
}

// Index is an immutable set of names with their unit-length embeddings.
// Rebuilding produces a new Index; existing ones are never modified.
type Index struct {
	embedder  embedding.Provider
	names     []string
	vectors   [][]float32
	threshold float64
}

// Build embeds every distinct non-empty name in one batch
func Build(ctx context.Context, embedder embedding.Provider, names []string, threshold float64) (*Index, error) {
	if threshold < -1 || threshold > 1 {
		return nil, apperrors.Newf(apperrors.ErrTypeValidation, "threshold must be within [-1, 1], got %v", threshold)
	}

	seen := make(map[string]struct{}, len(names))
	distinct := make([]string, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		distinct = append(distinct, name)
	}

	ix := &Index{
		embedder:  embedder,
		names:     distinct,
		threshold: threshold,
	}

	if len(distinct) == 0 {
		return ix, nil
	}

	vectors, err := embedder.GenerateEmbeddings(ctx, distinct)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeEmbedding, "failed to embed names")
	}

	if len(vectors) != len(distinct) {
		return nil, apperrors.Newf(apperrors.ErrTypeEmbedding,
			"embedder returned %d vectors for %d names", len(vectors), len(distinct))
	}

	ix.vectors = make([][]float32, len(vectors))
	for i, v := range vectors {
		ix.vectors[i] = unit(v)
	}

	return ix, nil
}

// Len returns the number of indexed names
func (ix *Index) Len() int {
	return len(ix.names)
}

// Names returns the indexed names in build order
func (ix *Index) Names() []string {
	return append([]string(nil), ix.names...)
}

// Threshold returns the inclusive confidence cut-off
func (ix *Index) Threshold() float64 {
	return ix.threshold
}

// Nearest returns the single closest name. Ties keep the earliest name. A
// score equal to the threshold is confident; below it the query passes
// through unchanged.
func (ix *Index) Nearest(ctx context.Context, query string) (Match, error) {
	match := Match{Query: query}

	if len(ix.names) == 0 || strings.TrimSpace(query) == "" {
		return match, nil
	}

	vecs, err := ix.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return match, apperrors.Wrap(err, apperrors.ErrTypeEmbedding, "failed to embed query")
	}

	if len(vecs) != 1 {
		return match, apperrors.Newf(apperrors.ErrTypeEmbedding, "embedder returned %d vectors for 1 query", len(vecs))
	}

	q := unit(vecs[0])
	if len(q) != len(ix.vectors[0]) {
		return match, apperrors.Newf(apperrors.ErrTypeEmbedding,
			"query has %d dimensions, index has %d", len(q), len(ix.vectors[0]))
	}

	best := -1
	bestScore := math.Inf(-1)

	for i, v := range ix.vectors {
		if s := dot(q, v); s > bestScore {
			best, bestScore = i, s
		}
	}

	match.Name = ix.names[best]
	match.Score = clamp(bestScore)
	match.Confident = match.Score >= ix.threshold

	return match, nil
}

// Resolve returns the confident match for query, or query itself
func (ix *Index) Resolve(ctx context.Context, query string) (string, error) {
	m, err := ix.Nearest(ctx, query)
	if err != nil {
		return query, err
	}

	return m.Value(), nil
}

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}

	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}

	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}

	return s
}

// clamp absorbs float32 rounding so identical vectors score exactly 1
func clamp(s float64) float64 {
	const eps = 1e-6

	switch {
	case s > 1-eps:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
