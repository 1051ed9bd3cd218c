package embeddings

import (
	"context"
	"fmt"
	"os"
)

// Embedder converts text into fixed-dimension embedding vectors.
// Implementations must be deterministic for a fixed model version and
// must return errors distinguishable from valid all-zero vectors: a
// failure is never reported as an empty embedding.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, returning one
	// vector per input in the same order. Implementations may sub-chunk
	// the request internally.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion returns the model identifier, suitable for cache
	// keys and calibration bookkeeping.
	ModelVersion() string

	// Dimensions returns the embedding vector dimension.
	Dimensions() int

	// Close releases any resources held by the provider.
	Close() error
}

// Provider names accepted by Config.Provider.
const (
	ProviderOllama = "ollama"
	ProviderVoyage = "voyage"
)

// Config selects and configures an embedding provider.
type Config struct {
	// Provider selects the backend: ProviderOllama (default) or
	// ProviderVoyage.
	Provider string

	// Model overrides the provider's default model.
	Model string

	// OllamaURL overrides the Ollama endpoint.
	OllamaURL string

	// VoyageAPIKey authenticates against the Voyage AI API. Required
	// when Provider is ProviderVoyage.
	VoyageAPIKey string
}

// DefaultConfig builds a Config from the environment:
//
//	SMARTINBOX_EMBEDDER         provider name (default "ollama")
//	SMARTINBOX_EMBEDDING_MODEL  model override
//	OLLAMA_HOST                 Ollama endpoint
//	VOYAGE_API_KEY              Voyage AI API key
func DefaultConfig() Config {
	provider := os.Getenv("SMARTINBOX_EMBEDDER")
	if provider == "" {
		provider = ProviderOllama
	}
	return Config{
		Provider:     provider,
		Model:        os.Getenv("SMARTINBOX_EMBEDDING_MODEL"),
		OllamaURL:    os.Getenv("OLLAMA_HOST"),
		VoyageAPIKey: os.Getenv("VOYAGE_API_KEY"),
	}
}

// NewEmbedder creates the embedder described by cfg.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.Model), nil
	case ProviderVoyage:
		return NewVoyageEmbedder(cfg.VoyageAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want %q or %q)",
			cfg.Provider, ProviderOllama, ProviderVoyage)
	}
}
