package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kyleking/timesheet-sql/internal/cache"
	"github.com/kyleking/timesheet-sql/internal/logging"
)

// CachedProvider serves vectors from a cache and only sends misses to the
// wrapped provider
type CachedProvider struct {
	inner  Provider
	store  cache.Cache
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedProvider wraps inner with store
func NewCachedProvider(inner Provider, store cache.Cache, ttl time.Duration, logger *logging.Logger) *CachedProvider {
	if logger == nil {
		logger = logging.Discard()
	}

	return &CachedProvider{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: logger.WithField("provider", inner.GetName()),
	}
}

func (p *CachedProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		missTexts []string
		missIdx   []int
	)

	for i, text := range texts {
		raw, err := p.store.Get(ctx, p.key(text))
		if err == nil {
			if vec, ok := decodeVector(raw, p.inner.GetDimensions()); ok {
				out[i] = vec
				continue
			}

			if err := p.store.Delete(ctx, p.key(text)); err != nil {
				p.logger.WithError(err).Debug("Failed to drop undecodable cache entry")
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			p.logger.WithError(err).Debug("Embedding cache read failed")
		}

		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	p.logger.WithFields(map[string]any{
		"hits":   len(texts) - len(missTexts),
		"misses": len(missTexts),
	}).Debug("Embedding cache lookup")

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := p.inner.GenerateEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	if err := checkBatch(p.inner, missTexts, fresh); err != nil {
		return nil, err
	}

	for j, vec := range fresh {
		out[missIdx[j]] = vec

		if err := p.store.Set(ctx, p.key(missTexts[j]), encodeVector(vec), p.ttl); err != nil {
			p.logger.WithError(err).Warn("Embedding cache write failed")
		}
	}

	return out, nil
}

func (p *CachedProvider) GetDimensions() int {
	return p.inner.GetDimensions()
}

func (p *CachedProvider) GetName() string {
	return p.inner.GetName()
}

func (p *CachedProvider) key(text string) string {
	return fmt.Sprintf("%s|%d|%s", p.inner.GetName(), p.inner.GetDimensions(), text)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}

	return buf
}

func decodeVector(raw []byte, dims int) ([]float32, bool) {
	if len(raw) != 4*dims {
		return nil, false
	}

	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}

	return vec, true
}
