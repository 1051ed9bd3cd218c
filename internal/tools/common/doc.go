// Package common holds helpers shared by the MCP tool packages: account
// resolution from tool arguments or the authenticated session, and handler
// wrappers that record per-tool metrics and trace spans.
package common
