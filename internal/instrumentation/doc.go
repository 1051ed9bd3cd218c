// Package instrumentation wires OpenTelemetry metrics, tracing and audit
// logging into the smartinbox server.
//
// A Provider owns the meter and tracer providers plus the Prometheus
// /metrics endpoint; Metrics is the typed recording surface handed to the
// rest of the codebase so callers never touch raw OTel instruments.
//
// # Metrics
//
// Classification and embedding pipeline:
//   - classifications_total (category, confidence bucket)
//   - classification_duration_seconds
//   - embedding_requests_total (provider, operation, status)
//   - embedding_request_duration_seconds
//
// Inbox sync and feedback:
//   - inbox_sync_runs_total (status)
//   - inbox_sync_messages_total (classified, skipped, labeled)
//   - feedback_total (confirmed, corrected)
//
// MCP tools and Google APIs:
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds (tool, status)
//   - google_api_operations_total / google_api_operation_duration_seconds
//
// HTTP transport and OAuth:
//   - http_requests_total / http_request_duration_seconds
//   - active_sessions
//   - oauth_auth_total / oauth_token_refresh_total (result)
//
// # Tracing
//
// Spans cover the three layers a request passes through: MCP tool
// invocations (tool.<name>, server kind), Google API operations
// (google.<service>.<operation>, client kind) and embedding provider
// requests (embeddings.<provider>.<operation>, client kind). Export is
// off unless TRACING_EXPORTER selects otlp or stdout; with the default
// none exporter the tracer provider never samples, so the span helpers
// stay branch-free at negligible cost.
//
// # Audit logging
//
// ToolInvocation captures who ran which tool against which account and
// how it ended. AuditLogger writes one slog line per invocation with the
// user reduced to a domain unless IncludePII is set. See audit.go.
//
// # Configuration
//
// DefaultConfig reads the environment (INSTRUMENTATION_ENABLED,
// METRICS_EXPORTER, TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT,
// OTEL_TRACES_SAMPLER_ARG, OTEL_SERVICE_NAME and the AUDIT_LOGGING_*
// switches); Validate rejects unknown exporters and missing OTLP
// endpoints before the provider starts.
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordClassification(ctx, "work", 85, time.Since(start))
package instrumentation
