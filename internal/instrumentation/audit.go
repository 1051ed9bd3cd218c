package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Audit-only slog keys. Tool, service, operation and account reuse the
// metric attribute constants so log lines and metric labels agree.
const (
	attrUser       = "user"
	attrUserDomain = "user_domain"
	attrDuration   = "duration"
	attrSuccess    = "success"
	attrTraceID    = "trace_id"
	attrSpanID     = "span_id"
	attrError      = "error"
)

// ToolInvocation records one MCP tool call for the audit trail: who called
// which tool against which account and backing service, how long it took
// and how it ended.
//
// UserEmail is PII. LogAttrs replaces it with the domain; only
// LogAuditAttrs emits it, for streams with access controls.
type ToolInvocation struct {
	Tool string

	// UserEmail is the OAuth identity, empty on stdio transport.
	UserEmail string

	Account   string
	Service   string
	Operation string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool call. Call Complete when the
// handler returns.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser records the authenticated user's email.
func (ti *ToolInvocation) WithUser(email string) *ToolInvocation {
	ti.UserEmail = email
	return ti
}

// WithAccount records which account the tool operated on.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithService records the backing service and operation kind, e.g.
// ("gmail", "sync") or ("ollama", "embed_batch").
func (ti *ToolInvocation) WithService(service, operation string) *ToolInvocation {
	ti.Service = service
	ti.Operation = operation
	return ti
}

// WithSpanContext copies trace and span IDs from the active span, if any.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

// Complete stops the timer and records the outcome.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns the metric status label for this invocation.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// UserDomain returns the domain of the user's email, or "unknown".
func (ti *ToolInvocation) UserDomain() string {
	return ExtractUserDomain(ti.UserEmail)
}

// LogAttrs returns the invocation as slog attributes with the user reduced
// to a domain. The "default" account is omitted; it carries no information.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String(attrTool, ti.Tool),
		slog.String(attrUserDomain, ti.UserDomain()),
		slog.Duration(attrDuration, ti.Duration),
		slog.Bool(attrSuccess, ti.Success),
	}
	if ti.Account != "" && ti.Account != "default" {
		attrs = append(attrs, slog.String(attrAccount, ti.Account))
	}
	return ti.appendCommon(attrs, false)
}

// LogAuditAttrs returns the invocation as slog attributes including the
// full user email.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String(attrTool, ti.Tool),
		slog.String(attrUser, ti.UserEmail),
		slog.Duration(attrDuration, ti.Duration),
		slog.Bool(attrSuccess, ti.Success),
	}
	if ti.Account != "" {
		attrs = append(attrs, slog.String(attrAccount, ti.Account))
	}
	return ti.appendCommon(attrs, true)
}

// appendCommon adds the attributes shared by both attribute sets.
func (ti *ToolInvocation) appendCommon(attrs []slog.Attr, spanID bool) []slog.Attr {
	if ti.Service != "" {
		attrs = append(attrs, slog.String(attrService, ti.Service))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String(attrOperation, ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String(attrTraceID, ti.TraceID))
	}
	if spanID && ti.SpanID != "" {
		attrs = append(attrs, slog.String(attrSpanID, ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String(attrError, ti.Error))
	}
	return attrs
}

// AuditLogger writes the tool invocation audit trail through slog.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled audit logger that anonymizes user
// identities. A nil logger falls back to slog.Default.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an audit logger with explicit settings.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation writes one audit line for a completed invocation:
// "tool_executed" on success, "tool_failed" otherwise. The user identity
// is anonymized unless the logger was configured with IncludePII.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogToolAudit writes a full-detail "tool_audit" line, always including
// the user email regardless of IncludePII. Route this stream to secure
// storage.
func (al *AuditLogger) LogToolAudit(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	attrs := ti.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("tool_audit", args...)
}
