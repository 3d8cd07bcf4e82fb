package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
)

// OllamaProvider calls the /api/embed endpoint of an Ollama server
type OllamaProvider struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a provider for the given server and model
func NewOllamaProvider(baseURL, model string, dims int, timeout time.Duration) (*OllamaProvider, error) {
	if baseURL == "" {
		return nil, apperrors.New(apperrors.ErrTypeConfig, "ollama base URL is required")
	}

	if model == "" {
		return nil, apperrors.New(apperrors.ErrTypeConfig, "ollama model is required")
	}

	if dims <= 0 {
		return nil, apperrors.Newf(apperrors.ErrTypeConfig, "invalid embedding dimensions: %d", dims)
	}

	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// GenerateEmbeddings sends the whole batch in a single request
func (p *OllamaProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeNetwork, "embedding request failed").
			WithSuggestion(fmt.Sprintf("Check that Ollama is running at %s", p.baseURL))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeNetwork, "failed to read embedding response")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, apperrors.Newf(apperrors.ErrTypeEmbedding, "ollama returned %d: %s", resp.StatusCode, apiErr.Error).
				WithSuggestion(fmt.Sprintf("Pull the model first: ollama pull %s", p.model))
		}

		return nil, apperrors.Newf(apperrors.ErrTypeEmbedding, "ollama returned %d", resp.StatusCode)
	}

	var decoded ollamaEmbedResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeEmbedding, "failed to decode embedding response")
	}

	if err := checkBatch(p, texts, decoded.Embeddings); err != nil {
		return nil, err
	}

	return decoded.Embeddings, nil
}

func (p *OllamaProvider) GetDimensions() int {
	return p.dims
}

func (p *OllamaProvider) GetName() string {
	return "ollama:" + p.model
}
