package common

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/codes"

	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
	"github.com/gokturkhatay/smartinbox/internal/server"
)

// InstrumentedToolHandler wraps a tool handler so every call is traced,
// counted, timed and audit logged. When the server context carries neither
// metrics nor an audit logger the handler runs unwrapped.
//
//	s.AddTool(tool, common.InstrumentedToolHandler("classify_email", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return instrumented(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService additionally attributes the call to a
// backing service operation, so per-service counters (Gmail list, embed
// batch) line up with the per-tool ones.
//
//	s.AddTool(tool, common.InstrumentedToolHandlerWithService("sync_inbox", "gmail", "sync", sc, handler))
func InstrumentedToolHandlerWithService(
	toolName string,
	serviceName string,
	operation string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return instrumented(toolName, serviceName, operation, sc, handler)
}

func instrumented(
	toolName, serviceName, operation string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		audit := sc.AuditLogger()
		if metrics == nil && audit == nil {
			return handler(ctx, request)
		}

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		inv := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		if serviceName != "" {
			inv.WithService(serviceName, operation)
		}
		if userInfo, ok := server.GetUserFromContext(ctx); ok && userInfo != nil {
			inv.WithUser(userInfo.Email)
		}
		account := ResolveAccount(ctx, request.GetArguments())
		if account != "" {
			inv.WithAccount(account)
		}

		result, err := handler(ctx, request)

		// A handler reports failure either through err or through a result
		// flagged as an error.
		failed := err != nil || (result != nil && result.IsError)
		inv.Complete(!failed, err)

		switch {
		case err != nil:
			instrumentation.SetSpanError(span, err)
		case failed:
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			instrumentation.SetSpanSuccess(span)
		}

		if metrics != nil {
			metrics.RecordToolInvocationWithAccount(ctx, toolName, inv.Status(), account, inv.Duration)
			if serviceName != "" {
				metrics.RecordGoogleAPIOperation(ctx, serviceName, operation, inv.Status(), inv.Duration)
			}
		}
		if audit != nil {
			audit.LogToolInvocation(inv)
		}

		return result, err
	}
}
