// Package inbox_tools provides MCP (Model Context Protocol) tools for Gmail
// inbox synchronization and correction feedback.
//
// Tools:
//
//   - sync_inbox: run one sync pass for an account: list inbox messages,
//     classify the ones not yet stored, persist the verdicts and optionally
//     mirror them onto Gmail as SmartInbox/<category> labels
//   - record_feedback: store a human category correction for one or more
//     messages and update their stored verdicts
//   - feedback_stats: aggregate the recorded corrections for an account
//
// Sync and feedback both require the local store; sync additionally needs an
// authenticated Gmail client, resolved per account through the server
// context. record_feedback accepts a single Gmail message ID or an array of
// IDs and reports per-message outcomes, so a partial failure never hides the
// corrections that did get recorded.
package inbox_tools
