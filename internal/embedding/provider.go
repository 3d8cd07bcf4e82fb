// Package embedding turns short texts such as project and resource names into
// fixed-size vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kyleking/timesheet-sql/internal/cache"
	"github.com/kyleking/timesheet-sql/internal/config"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
)

// Provider defines the interface for embedding providers
type Provider interface {
	// GenerateEmbeddings returns one vector per input text, in input order
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GetDimensions returns the dimensionality of embeddings produced by this provider
	GetDimensions() int

	// GetName returns the provider name for identification
	GetName() string
}

const (
	ProviderNGram  = "ngram"
	ProviderOllama = "ollama"
)

// NewProvider creates the provider named in the embedding configuration
func NewProvider(cfg config.EmbeddingConfig, timeout time.Duration) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderNGram, "":
		provider, err = NewNGramProvider(cfg.Dimensions)
	case ProviderOllama:
		provider, err = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimensions, timeout)
	default:
		return nil, apperrors.Newf(apperrors.ErrTypeConfig, "unsupported embedding provider: %s", cfg.Provider).
			WithSuggestion("Use one of: ngram, ollama")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	return provider, nil
}

// FromConfig builds the configured provider, wrapped in the disk cache when enabled
func FromConfig(cfg *config.Config, logger *logging.Logger) (Provider, error) {
	provider, err := NewProvider(cfg.Embedding, cfg.EmbeddingTimeout())
	if err != nil {
		return nil, err
	}

	store, err := OpenCache(cfg)
	if err != nil {
		return nil, err
	}

	if store == nil {
		return provider, nil
	}

	return NewCachedProvider(provider, store, cacheTTL(cfg), logger), nil
}

// OpenCache opens the embedding cache directory. It returns nil when caching
// is disabled.
func OpenCache(cfg *config.Config) (*cache.FileCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	store, err := cache.NewFileCache(cfg.Cache.Directory, cacheTTL(cfg))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to open embedding cache")
	}

	return store, nil
}

func cacheTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Cache.TTLHours) * time.Hour
}

func checkBatch(p Provider, texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return apperrors.Newf(apperrors.ErrTypeEmbedding,
			"%s returned %d embeddings for %d texts", p.GetName(), len(vectors), len(texts))
	}

	for i, v := range vectors {
		if len(v) != p.GetDimensions() {
			return apperrors.New(apperrors.ErrTypeEmbedding,
				fmt.Sprintf("dimension mismatch for text %d: expected %d, got %d", i, p.GetDimensions(), len(v)))
		}
	}

	return nil
}
