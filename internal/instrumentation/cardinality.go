package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with note paths or client
// identifiers.

// ExtractTopFolder extracts the top-level folder from a vault note path.
// This reduces cardinality by using the folder instead of the full path.
//
// Example:
//
//	ExtractTopFolder("projects/plan.md")       // "projects"
//	ExtractTopFolder("daily/2026/08/31.md")    // "daily"
//	ExtractTopFolder("inbox.md")               // "(root)"
//	ExtractTopFolder("")                       // "unknown"
func ExtractTopFolder(path string) string {
	if path == "" {
		return "unknown"
	}

	if i := strings.Index(path, "/"); i > 0 {
		return path[:i]
	}

	return "(root)"
}

// Common operation types for vault backend metrics.
// Status, OAuth, and error kind constants are defined in config.go.
const (
	OperationRead   = "read"
	OperationWrite  = "write"
	OperationExists = "exists"
	OperationList   = "list"
	OperationSearch = "search"
)
