// Package common provides shared utilities for MCP tool implementations.
// It contains the instrumentation wrappers, caller identification, and path
// validation helpers used across all tool packages to ensure consistent
// behavior.
package common
