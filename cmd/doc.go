// Package cmd implements the command-line interface for smartinbox.
//
// This package provides the following commands:
//   - classify: Classify a single message given on the command line or stdin
//   - categories: List the category taxonomy with descriptions
//   - sync: Fetch inbox messages from Gmail, classify them and optionally apply labels
//   - auth: Authorize a Google account and store its OAuth token
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
