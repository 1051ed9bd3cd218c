// Package store provides the SQLite-backed local database for synced
// messages, their classifications and user feedback.
//
// The database lives in the user cache directory by default (see
// DefaultPath) and uses WAL mode so the MCP server and CLI can read it
// concurrently. Three tables are involved:
//   - messages: the synced inbox snapshot, unique per (account,
//     gmail_id)
//   - classifications: the engine's verdict per message, including the
//     model version that produced it
//   - feedback: human category corrections, which both reclassify the
//     stored message and accumulate into preference statistics
//
// The store deals in plain strings and scalar types; interpreting
// category names as the closed classify.Category type happens in the
// layers above.
package store
