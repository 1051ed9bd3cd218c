// Package server provides the MCP server context, session management,
// and OAuth-protected HTTP transport for smartinbox.
//
// # Key Components
//
// ServerContext owns the shared dependencies of the MCP server: the
// classification engine, the local message store, and per-account Gmail
// clients with lazy initialization and caching. Tokens come from one of
// two providers:
//   - google.FileTokenProvider: for the stdio transport, reads tokens from disk
//   - TokenProvider: for the HTTP transport, reads tokens captured by OAuth
//     authentication from the token store
//
// OAuthHTTPServer wraps an MCP server with OAuth 2.1 bearer authentication:
//   - Protected Resource Metadata (RFC 9728) pointing clients at Google
//   - Google token validation against the userinfo endpoint
//   - Per-IP rate limiting on OAuth and MCP endpoints
//   - HTTP and authentication metrics when instrumentation is enabled
//   - Health endpoints for Kubernetes probes
//
// SessionIDManager handles multi-account session tracking for the HTTP
// transport. It maps Bearer token hashes to Google accounts, enabling
// multiple users to share a single MCP server instance.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolated
// from application traffic.
//
// # Security
//
// The OAuth transport enforces HTTPS for production (localhost exempt for
// development), sends security headers on all OAuth responses, and returns
// RFC 6750 WWW-Authenticate challenges with actionable error descriptions.
package server
