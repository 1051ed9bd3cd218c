package embeddings

import (
	"context"
	"time"

	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
)

// InstrumentedEmbedder decorates an Embedder with OpenTelemetry spans
// and request metrics. The wrapped provider stays unaware of the
// telemetry stack, so both provider implementations and the fakes used
// in tests can be wrapped uniformly.
type InstrumentedEmbedder struct {
	inner    Embedder
	provider string
	metrics  *instrumentation.Metrics
}

// NewInstrumentedEmbedder wraps inner with telemetry under the given
// provider name ("ollama" or "voyage"). A nil metrics recorder still
// produces spans; metric recording becomes a no-op.
func NewInstrumentedEmbedder(inner Embedder, provider string, metrics *instrumentation.Metrics) *InstrumentedEmbedder {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		metrics:  metrics,
	}
}

// Embed generates an embedding vector for the given text.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := instrumentation.StartEmbeddingSpan(ctx, e.provider, instrumentation.OperationEmbed)
	defer span.End()

	start := time.Now()
	vec, err := e.inner.Embed(ctx, text)
	e.record(ctx, instrumentation.OperationEmbed, err, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *InstrumentedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := instrumentation.StartEmbeddingSpan(ctx, e.provider, instrumentation.OperationEmbedBatch)
	defer span.End()

	start := time.Now()
	vecs, err := e.inner.EmbedBatch(ctx, texts)
	e.record(ctx, instrumentation.OperationEmbedBatch, err, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return vecs, nil
}

func (e *InstrumentedEmbedder) record(ctx context.Context, operation string, err error, duration time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	e.metrics.RecordEmbeddingRequest(ctx, e.provider, operation, status, duration)
}

// ModelVersion returns the wrapped provider's model identifier.
func (e *InstrumentedEmbedder) ModelVersion() string {
	return e.inner.ModelVersion()
}

// Dimensions returns the wrapped provider's vector dimension.
func (e *InstrumentedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the wrapped provider's resources.
func (e *InstrumentedEmbedder) Close() error {
	return e.inner.Close()
}
