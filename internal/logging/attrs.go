package logging

import "log/slog"

// Attribute keys shared across the codebase. Using the constants keeps log
// lines queryable when the same concept is logged from different packages.
const (
	KeyOperation  = "operation"
	KeyAccount    = "account"
	KeyProvider   = "provider"
	KeyTool       = "tool"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyUserHash   = "user_hash"
	KeyDomain     = "user_domain"
	KeyCategory   = "category"
	KeyConfidence = "confidence"
	KeyModel      = "model"
	KeyCount      = "count"
)

// Status values reported under KeyStatus, matching the instrumentation
// status labels so logs and metrics agree.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Constructors for attributes under the shared keys.
func Operation(op string) slog.Attr       { return slog.String(KeyOperation, op) }
func Account(account string) slog.Attr    { return slog.String(KeyAccount, account) }
func Provider(provider string) slog.Attr  { return slog.String(KeyProvider, provider) }
func Tool(tool string) slog.Attr          { return slog.String(KeyTool, tool) }
func Status(status string) slog.Attr      { return slog.String(KeyStatus, status) }
func Category(category string) slog.Attr  { return slog.String(KeyCategory, category) }
func Confidence(confidence int) slog.Attr { return slog.Int(KeyConfidence, confidence) }
func Model(model string) slog.Attr        { return slog.String(KeyModel, model) }
func Count(n int) slog.Attr               { return slog.Int(KeyCount, n) }

// Err returns an error attribute, or an empty group that handlers omit when
// err is nil. Call sites can pass a possibly nil error without branching.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// WithOperation returns a logger scoped to a named operation.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

// WithAccount returns a logger scoped to a Gmail account.
func WithAccount(logger *slog.Logger, account string) *slog.Logger {
	return logger.With(Account(account))
}

// WithTool returns a logger scoped to an MCP tool.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}
