package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/austinfhunter/voyageai"
)

const (
	// DefaultVoyageModel is the hosted model used when none is
	// configured.
	DefaultVoyageModel = "voyage-3.5-lite"

	// DefaultVoyageDimensions is the output dimension requested from
	// the Voyage API.
	DefaultVoyageDimensions = 1024

	// voyageMaxBatch caps how many texts go into a single Voyage API
	// request.
	voyageMaxBatch = 64
)

// VoyageEmbedder implements Embedder against the hosted Voyage AI
// embeddings API.
type VoyageEmbedder struct {
	client *voyageai.VoyageClient
	model  string
	dims   int
}

// NewVoyageEmbedder creates an embedder backed by Voyage AI. The API
// key is required; an empty model falls back to DefaultVoyageModel.
func NewVoyageEmbedder(apiKey, model string) (*VoyageEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("voyage embedder requires an API key (set VOYAGE_API_KEY)")
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	return &VoyageEmbedder{
		client: voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		}),
		model: model,
		dims:  DefaultVoyageDimensions,
	}, nil
}

// Embed generates an embedding vector for the given text.
func (e *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the
// input into API-sized chunks and preserving input order.
func (e *VoyageEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += voyageMaxBatch {
		end := start + voyageMaxBatch
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

// embedChunk performs one Voyage API call. The client library manages
// its own HTTP lifecycle and does not accept a context, so
// cancellation is only checked between chunks.
func (e *VoyageEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dims := e.dims
	resp, err := e.client.Embed(texts, e.model, &voyageai.EmbeddingRequestOpts{
		OutputDimension: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("voyage embed failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, obj := range resp.Data {
		out[i] = obj.Embedding
	}
	return out, nil
}

// ModelVersion returns the configured model name.
func (e *VoyageEmbedder) ModelVersion() string {
	return e.model
}

// Dimensions returns the embedding vector dimension.
func (e *VoyageEmbedder) Dimensions() int {
	return e.dims
}

// Close is a no-op; the underlying client holds no persistent
// connections.
func (e *VoyageEmbedder) Close() error {
	return nil
}
