// Package batch provides common utilities for batch operations across MCP tools.
//
// Tools like record_feedback accept a single Gmail message ID or an array of
// IDs; this package includes helpers for:
//   - Parsing parameters that accept both single values and arrays,
//     including arrays stringified as JSON by some MCP clients
//   - Processing batch operations with per-item outcomes and context
//     cancellation
//   - Formatting batch results in a consistent structure so partial
//     failures never hide the items that succeeded
package batch
