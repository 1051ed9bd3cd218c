// Package embeddings converts text into fixed-dimension vectors for
// semantic comparison.
//
// Two providers are supported:
//   - Ollama (default): a locally running Ollama server with a small
//     embedding model such as all-minilm. No data leaves the machine.
//   - Voyage AI: the hosted Voyage embeddings API, for deployments
//     without local model capacity.
//
// Providers are selected through Config (see DefaultConfig for the
// environment variables involved) and exposed behind the Embedder
// interface, so callers never depend on a concrete backend. A fixed
// model version always produces the same vector for the same text;
// switching models or providers changes vector geometry and requires
// recalibrating any similarity thresholds tuned against it.
//
// Batch requests are sub-chunked internally to each provider's
// comfortable request size. Callers see one logical call with results
// in input order.
package embeddings
