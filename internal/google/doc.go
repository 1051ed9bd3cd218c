// Package google provides OAuth2 authentication and token management for the
// Gmail API.
//
// This package handles both file-based token storage (for STDIO transport and
// CLI usage) and OAuth store-based token management (for HTTP transport with
// OAuth authentication).
//
// The TokenProvider interface allows different token sources to be plugged in,
// enabling seamless integration between MCP OAuth authentication and Gmail
// API access.
package google
