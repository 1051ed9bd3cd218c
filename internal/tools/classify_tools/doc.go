// Package classify_tools provides MCP (Model Context Protocol) tools for
// semantic email classification.
//
// This package exposes the classification engine through MCP tools that can
// be called by AI agents or other MCP clients:
//
//   - classify_email: classify a single message from its subject, sender
//     and content fields
//   - classify_batch: classify several messages in one call, amortizing the
//     embedding cost over the batch
//   - list_categories: return the category taxonomy with display metadata
//
// Classification never requires Gmail credentials; the tools operate on the
// message fields supplied in the request. The engine is provided through the
// server context and is shared with the sync tools, so exemplar embeddings
// are computed once per process regardless of which surface triggers them.
//
// All tools are wrapped with instrumentation (metrics, audit logging) via
// the common package.
package classify_tools
