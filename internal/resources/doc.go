// Package resources provides MCP resources for exposing classifier data.
// Resources are read-only data sources that MCP clients can fetch, such as
// the category taxonomy, display metadata, and the active confidence
// calibration.
package resources
