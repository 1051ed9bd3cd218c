package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmbedder struct {
	embedCalls int
	batchCalls int
	err        error
	closed     bool
}

func (r *recordingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	r.embedCalls++
	if r.err != nil {
		return nil, r.err
	}
	return []float32{1, 0}, nil
}

func (r *recordingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	r.batchCalls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

func (r *recordingEmbedder) ModelVersion() string { return "recording-v1" }
func (r *recordingEmbedder) Dimensions() int      { return 2 }
func (r *recordingEmbedder) Close() error {
	r.closed = true
	return nil
}

func TestInstrumentedEmbedderDelegates(t *testing.T) {
	ctx := context.Background()
	inner := &recordingEmbedder{}
	wrapped := NewInstrumentedEmbedder(inner, ProviderOllama, nil)

	vec, err := wrapped.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 1, inner.embedCalls)

	vecs, err := wrapped.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 1, inner.batchCalls)

	assert.Equal(t, "recording-v1", wrapped.ModelVersion())
	assert.Equal(t, 2, wrapped.Dimensions())

	require.NoError(t, wrapped.Close())
	assert.True(t, inner.closed)
}

func TestInstrumentedEmbedderPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	inner := &recordingEmbedder{err: errors.New("provider down")}
	wrapped := NewInstrumentedEmbedder(inner, ProviderVoyage, nil)

	_, err := wrapped.Embed(ctx, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	_, err = wrapped.EmbedBatch(ctx, []string{"a"})
	require.Error(t, err)
}
