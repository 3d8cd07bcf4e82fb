package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/timesheet-sql/internal/cache"
	"github.com/kyleking/timesheet-sql/internal/config"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot
}

func embedPair(t *testing.T, p Provider, a, b string) float64 {
	t.Helper()

	vecs, err := p.GenerateEmbeddings(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	return cosine(vecs[0], vecs[1])
}

func TestNGramProviderDeterministicUnitVectors(t *testing.T) {
	p, err := NewNGramProvider(384)
	require.NoError(t, err)

	first, err := p.GenerateEmbeddings(context.Background(), []string{"Project Apollo"})
	require.NoError(t, err)

	second, err := p.GenerateEmbeddings(context.Background(), []string{"Project Apollo"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first[0], 384)
	assert.InDelta(t, 1.0, cosine(first[0], first[0]), 1e-6)
	assert.Equal(t, "ngram-384", p.GetName())
}

func TestNGramProviderSimilarity(t *testing.T) {
	p, err := NewNGramProvider(384)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, embedPair(t, p, "Ramyashree Raghavarapu", "raghavarapu  RAMYASHREE"), 1e-6,
		"word order and case do not matter")

	typo := embedPair(t, p, "Ramyashree Raghavarapu", "Ramyasree Ragavarapu")
	unrelated := embedPair(t, p, "Ramyashree Raghavarapu", "Quarterly Ledger Migration")

	assert.Greater(t, typo, 0.45)
	assert.Less(t, unrelated, 0.45)
	assert.Greater(t, typo, unrelated)
}

func TestNGramProviderEmptyText(t *testing.T) {
	p, err := NewNGramProvider(64)
	require.NoError(t, err)

	vecs, err := p.GenerateEmbeddings(context.Background(), []string{"", "  --  "})
	require.NoError(t, err)

	for _, v := range vecs {
		assert.Len(t, v, 64)
		assert.Zero(t, cosine(v, v))
	}
}

func TestNGramProviderRejectsTinyDimensions(t *testing.T) {
	_, err := NewNGramProvider(4)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "project a", Normalize("  PROJECT-A "))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
	assert.Equal(t, "fi", Normalize("ﬁ"), "NFKC folds ligatures")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.EmbeddingConfig{Provider: "ngram", Dimensions: 128}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 128, p.GetDimensions())

	p, err = NewProvider(config.EmbeddingConfig{
		Provider:   "ollama",
		Model:      "all-minilm",
		Dimensions: 384,
		BaseURL:    "http://localhost:11434/",
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ollama:all-minilm", p.GetName())

	_, err = NewProvider(config.EmbeddingConfig{Provider: "word2vec"}, time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = NewProvider(config.EmbeddingConfig{Provider: "ollama", Dimensions: 384}, time.Second)
	assert.Error(t, err)
}

func newOllamaServer(t *testing.T, dims int, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}

		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Model != "all-minilm" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(ollamaErrorResponse{Error: "model not found"})

			return
		}

		resp := ollamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}

		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOllamaProvider(t *testing.T) {
	var calls atomic.Int32

	server := newOllamaServer(t, 8, &calls)
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "all-minilm", 8, time.Second)
	require.NoError(t, err)

	vecs, err := p.GenerateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[2][2])
	assert.Equal(t, int32(1), calls.Load(), "batch is a single request")

	empty, err := p.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaProviderErrors(t *testing.T) {
	var calls atomic.Int32

	server := newOllamaServer(t, 8, &calls)
	defer server.Close()

	missing, err := NewOllamaProvider(server.URL, "nomic-embed-text", 8, time.Second)
	require.NoError(t, err)

	_, err = missing.GenerateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "model not found")
	assert.NotEmpty(t, apperrors.GetSuggestions(err))

	wrongDims, err := NewOllamaProvider(server.URL, "all-minilm", 384, time.Second)
	require.NoError(t, err)

	_, err = wrongDims.GenerateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension mismatch")

	down, err := NewOllamaProvider("http://127.0.0.1:1", "all-minilm", 8, time.Second)
	require.NoError(t, err)

	_, err = down.GenerateEmbeddings(context.Background(), []string{"a"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}

type countingProvider struct {
	inner Provider
	texts []string
}

func (c *countingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts = append(c.texts, texts...)
	return c.inner.GenerateEmbeddings(ctx, texts)
}

func (c *countingProvider) GetDimensions() int { return c.inner.GetDimensions() }
func (c *countingProvider) GetName() string    { return c.inner.GetName() }

func TestCachedProviderOnlyEmbedsMisses(t *testing.T) {
	ngram, err := NewNGramProvider(32)
	require.NoError(t, err)

	inner := &countingProvider{inner: ngram}

	store, err := cache.NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	p := NewCachedProvider(inner, store, time.Hour, nil)
	ctx := context.Background()

	first, err := p.GenerateEmbeddings(ctx, []string{"Project A", "Project B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Project A", "Project B"}, inner.texts)

	second, err := p.GenerateEmbeddings(ctx, []string{"Project B", "Project C", "Project A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Project A", "Project B", "Project C"}, inner.texts)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, ngram.GetName(), p.GetName())
	assert.Equal(t, 32, p.GetDimensions())
}

func TestCachedProviderReplacesUndecodableEntries(t *testing.T) {
	ngram, err := NewNGramProvider(32)
	require.NoError(t, err)

	inner := &countingProvider{inner: ngram}

	store, err := cache.NewFileCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	p := NewCachedProvider(inner, store, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, p.key("Project A"), []byte{1, 2, 3}, time.Hour))

	vecs, err := p.GenerateEmbeddings(ctx, []string{"Project A"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 32)
	assert.Equal(t, []string{"Project A"}, inner.texts)

	raw, err := store.Get(ctx, p.key("Project A"))
	require.NoError(t, err)
	assert.Len(t, raw, 4*32, "the short entry was replaced")
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{0, -1.5, float32(math.Pi), math.MaxFloat32}

	got, ok := decodeVector(encodeVector(vec), len(vec))
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = decodeVector([]byte{1, 2, 3}, 1)
	assert.False(t, ok)
}

func TestFromConfigWrapsCache(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = true
	cfg.Cache.Directory = t.TempDir()

	p, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedProvider{}, p)

	cfg.Cache.Enabled = false

	p, err = FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &NGramProvider{}, p)

	store, err := OpenCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
}
