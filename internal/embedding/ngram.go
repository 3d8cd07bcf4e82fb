package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NGramProvider hashes words and character trigrams into a signed feature
// vector. It needs no model files, is deterministic across runs and tolerates
// typos and reordered name parts.
type NGramProvider struct {
	dims int
}

// NewNGramProvider creates a hashing provider with the given width
func NewNGramProvider(dims int) (*NGramProvider, error) {
	if dims < 16 {
		return nil, fmt.Errorf("ngram dimensions must be at least 16, got %d", dims)
	}

	return &NGramProvider{dims: dims}, nil
}

// GenerateEmbeddings embeds each text independently
func (p *NGramProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// cases.Caser keeps state, so one per call
	fold := cases.Fold()

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out[i] = p.embed(fold, text)
	}

	return out, nil
}

func (p *NGramProvider) GetDimensions() int {
	return p.dims
}

func (p *NGramProvider) GetName() string {
	return fmt.Sprintf("ngram-%d", p.dims)
}

// Normalize applies the text canonicalization used before hashing
func Normalize(text string) string {
	return normalize(cases.Fold(), text)
}

func normalize(fold cases.Caser, text string) string {
	folded := fold.String(norm.NFKC.String(text))
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return strings.Join(words, " ")
}

func (p *NGramProvider) embed(fold cases.Caser, text string) []float32 {
	acc := make([]float64, p.dims)

	for _, word := range strings.Fields(normalize(fold, text)) {
		p.add(acc, "w:"+word, 1.0)

		runes := []rune(" " + word + " ")
		for i := 0; i+3 <= len(runes); i++ {
			p.add(acc, "g:"+string(runes[i:i+3]), 0.5)
		}
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}

	vec := make([]float32, p.dims)
	if sum == 0 {
		return vec
	}

	n := math.Sqrt(sum)
	for i, v := range acc {
		vec[i] = float32(v / n)
	}

	return vec
}

func (p *NGramProvider) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	if sum>>63 == 1 {
		weight = -weight
	}

	acc[sum%uint64(p.dims)] += weight
}
