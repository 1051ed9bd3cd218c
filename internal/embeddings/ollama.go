package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultOllamaModel is the embedding model used when none is
	// configured. all-minilm is small enough to run on any machine and
	// is what the default confidence calibration is tuned for.
	DefaultOllamaModel = "all-minilm"

	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaDimensions is the output dimension of all-minilm.
	DefaultOllamaDimensions = 384

	// ollamaMaxBatch caps how many texts go into a single /api/embed
	// request. Larger batches are split transparently.
	ollamaMaxBatch = 32
)

// OllamaEmbedder implements Embedder against a local Ollama server.
// Requests are serialized per instance: local inference gains nothing
// from concurrent requests and the server degrades under them.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	dims    int
	mu      sync.Mutex
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder for the Ollama server at
// baseURL using the given model. Empty arguments fall back to
// DefaultOllamaURL and DefaultOllamaModel.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaEmbedder{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: baseURL,
		model:   model,
		dims:    DefaultOllamaDimensions,
	}
}

// Embed generates an embedding vector for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the
// input into server-friendly chunks and preserving input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaMaxBatch {
		end := start + ollamaMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedChunk posts one /api/embed request, retrying transient failures
// with Fibonacci backoff. Server errors (5xx) and transport failures
// are retried; client errors and context cancellation are not.
func (e *OllamaEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.Marshal(ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var result ollamaEmbedResponse
	b := retry.NewFibonacci(500 * time.Millisecond)
	err = retry.Do(ctx, retry.WithMaxRetries(3, b), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(fmt.Errorf("ollama request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			statusErr := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= http.StatusInternalServerError {
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		result = ollamaEmbedResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode embed response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// Health verifies the Ollama server is reachable. It does not check
// that the configured model is pulled; a missing model surfaces as an
// error on the first embed call instead.
func (e *OllamaEmbedder) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// ModelVersion returns the configured model name.
func (e *OllamaEmbedder) ModelVersion() string {
	return e.model
}

// Dimensions returns the embedding vector dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// Close is a no-op for the HTTP-based embedder.
func (e *OllamaEmbedder) Close() error {
	return nil
}
