package testutil

import (
	"context"
	"fmt"
	"sync"
)

// MockEmbedder returns fixed vectors per text and records every batch
type MockEmbedder struct {
	mu sync.Mutex

	dims    int
	vectors map[string][]float32
	err     error
	batches [][]string
}

// EmbedderOption is a functional option for configuring MockEmbedder
type EmbedderOption func(*MockEmbedder)

// WithVector sets the vector returned for text
func WithVector(text string, vec ...float32) EmbedderOption {
	return func(m *MockEmbedder) {
		m.vectors[text] = vec
	}
}

// WithEmbedError makes every call fail with err
func WithEmbedError(err error) EmbedderOption {
	return func(m *MockEmbedder) {
		m.err = err
	}
}

// NewMockEmbedder creates a mock with the given width. Unknown texts embed to
// the zero vector.
func NewMockEmbedder(dims int, opts ...EmbedderOption) *MockEmbedder {
	m := &MockEmbedder{
		dims:    dims,
		vectors: make(map[string][]float32),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = append(m.batches, append([]string(nil), texts...))

	if m.err != nil {
		return nil, m.err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))

	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			vec = make([]float32, m.dims)
		}

		if len(vec) != m.dims {
			return nil, fmt.Errorf("mock vector for %q has %d dims, want %d", text, len(vec), m.dims)
		}

		out[i] = append([]float32(nil), vec...)
	}

	return out, nil
}

func (m *MockEmbedder) GetDimensions() int {
	return m.dims
}

func (m *MockEmbedder) GetName() string {
	return "mock"
}

// Batches returns a copy of every batch received so far
func (m *MockEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]string, len(m.batches))
	copy(out, m.batches)

	return out
}

// CallCount returns the number of GenerateEmbeddings calls
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.batches)
}
