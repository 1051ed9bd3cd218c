package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newSpanRecorder installs an in-memory tracer provider as the global and
// restores the previous one when the test finishes.
func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func spanAttrMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	return spans[0]
}

func TestStartToolSpan(t *testing.T) {
	sr := newSpanRecorder(t)

	ctx, span := StartToolSpan(context.Background(), "classify_email")
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("expected the returned context to carry a valid span")
	}
	SetSpanSuccess(span)
	span.End()

	got := endedSpan(t, sr)
	if got.Name() != "tool.classify_email" {
		t.Errorf("span name = %q, want %q", got.Name(), "tool.classify_email")
	}
	if got.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want %v", got.SpanKind(), trace.SpanKindServer)
	}
	attrs := spanAttrMap(got.Attributes())
	if attrs[SpanAttrTool] != "classify_email" {
		t.Errorf("attribute %s = %v, want %q", SpanAttrTool, attrs[SpanAttrTool], "classify_email")
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("status = %v, want %v", got.Status().Code, codes.Ok)
	}
}

func TestStartToolSpanExtraAttributes(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := StartToolSpan(context.Background(), "sync_inbox",
		attribute.Int("batch.size", 3))
	span.End()

	attrs := spanAttrMap(endedSpan(t, sr).Attributes())
	if attrs[SpanAttrTool] != "sync_inbox" {
		t.Errorf("attribute %s = %v, want %q", SpanAttrTool, attrs[SpanAttrTool], "sync_inbox")
	}
	if attrs["batch.size"] != int64(3) {
		t.Errorf("attribute batch.size = %v, want 3", attrs["batch.size"])
	}
}

func TestStartGoogleAPISpan(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceGmail, OperationSync)
	span.End()

	got := endedSpan(t, sr)
	if got.Name() != "google.gmail.sync" {
		t.Errorf("span name = %q, want %q", got.Name(), "google.gmail.sync")
	}
	if got.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want %v", got.SpanKind(), trace.SpanKindClient)
	}
	attrs := spanAttrMap(got.Attributes())
	if attrs[SpanAttrService] != "gmail" {
		t.Errorf("attribute %s = %v, want %q", SpanAttrService, attrs[SpanAttrService], "gmail")
	}
	if attrs[SpanAttrOperation] != "sync" {
		t.Errorf("attribute %s = %v, want %q", SpanAttrOperation, attrs[SpanAttrOperation], "sync")
	}
}

func TestStartEmbeddingSpan(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := StartEmbeddingSpan(context.Background(), ProviderOllama, OperationEmbedBatch)
	span.End()

	got := endedSpan(t, sr)
	if got.Name() != "embeddings.ollama.embed_batch" {
		t.Errorf("span name = %q, want %q", got.Name(), "embeddings.ollama.embed_batch")
	}
	if got.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want %v", got.SpanKind(), trace.SpanKindClient)
	}
	attrs := spanAttrMap(got.Attributes())
	if attrs[SpanAttrProvider] != "ollama" {
		t.Errorf("attribute %s = %v, want %q", SpanAttrProvider, attrs[SpanAttrProvider], "ollama")
	}
}

func TestEmbeddingSpanNestsUnderToolSpan(t *testing.T) {
	sr := newSpanRecorder(t)

	ctx, parent := StartToolSpan(context.Background(), "classify_email")
	_, child := StartEmbeddingSpan(ctx, ProviderVoyage, OperationEmbed)
	child.End()
	parent.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	// Spans are recorded in end order, child first.
	childSpan, parentSpan := spans[0], spans[1]
	if childSpan.SpanContext().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("child and parent spans should share a trace ID")
	}
	if childSpan.Parent().SpanID() != parentSpan.SpanContext().SpanID() {
		t.Error("embedding span should be a child of the tool span")
	}
}

func TestSetSpanError(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := StartToolSpan(context.Background(), "sync_inbox")
	SetSpanError(span, errors.New("gmail unreachable"))
	span.End()

	got := endedSpan(t, sr)
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want %v", got.Status().Code, codes.Error)
	}
	if got.Status().Description != "gmail unreachable" {
		t.Errorf("status description = %q, want %q", got.Status().Description, "gmail unreachable")
	}
	if len(got.Events()) != 1 || got.Events()[0].Name != "exception" {
		t.Errorf("expected a single exception event, got %v", got.Events())
	}
}

func TestSetSpanErrorNil(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := StartToolSpan(context.Background(), "sync_inbox")
	SetSpanError(span, nil)
	span.End()

	got := endedSpan(t, sr)
	if got.Status().Code != codes.Unset {
		t.Errorf("status = %v, want %v", got.Status().Code, codes.Unset)
	}
	if len(got.Events()) != 0 {
		t.Errorf("expected no events for a nil error, got %v", got.Events())
	}
}
