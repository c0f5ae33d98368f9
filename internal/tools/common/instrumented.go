package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/premachb/obsidian-remote-mcp/internal/instrumentation"
	"github.com/premachb/obsidian-remote-mcp/internal/server"
	"github.com/premachb/obsidian-remote-mcp/internal/vault"
)

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
// It records tool invocation metrics and logs the invocation for audit purposes.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Get metrics and audit logger (may be nil if not configured)
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		// If no instrumentation configured, just call the handler
		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		// Start timing and create invocation record
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)

		// Attach the authenticated caller when the transport knows one
		if clientID := ClientFromRequest(ctx); clientID != "" {
			invocation.WithClient(clientID)
		}

		// Call the actual handler
		result, err := handler(ctx, request)
		duration := time.Since(start)

		// Determine status
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
			} else {
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
		}

		// Record metrics
		if metrics != nil {
			metrics.RecordToolInvocationWithClient(ctx, toolName, status, invocation.ClientHash(), duration)
		}

		// Log audit
		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}

// InstrumentedVaultToolHandler is like InstrumentedToolHandler but also
// records the vault operation behind the tool for more detailed metrics.
//
// This handler records both:
// - MCP tool invocation metrics (mcp_tool_invocations_total, mcp_tool_duration_seconds)
// - Vault operation metrics (vault_operations_total, vault_operation_duration_seconds)
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedVaultToolHandler("my_tool", instrumentation.OperationRead, sc, handler))
func InstrumentedVaultToolHandler(
	toolName string,
	operation string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Get metrics and audit logger (may be nil if not configured)
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		// If no instrumentation configured, just call the handler
		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		// Start timing and create invocation record
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)

		if clientID := ClientFromRequest(ctx); clientID != "" {
			invocation.WithClient(clientID)
		}

		// Attach the vault target when the tool takes a path argument
		args := request.GetArguments()
		path, _ := args["path"].(string)
		invocation.WithVaultTarget(operation, path)

		// Call the actual handler
		result, err := handler(ctx, request)
		duration := time.Since(start)

		// Determine status
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
			} else {
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
		}

		// Record metrics
		if metrics != nil {
			metrics.RecordToolInvocationWithClient(ctx, toolName, status, invocation.ClientHash(), duration)
			metrics.RecordVaultOperation(ctx, operation, status, VaultErrorKind(err), duration)
		}

		// Log audit
		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}

// VaultErrorKind maps a vault error to the low-cardinality kind label used in
// metrics. Returns "" when err is nil so the label is omitted on success.
func VaultErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case vault.IsNotFound(err):
		return instrumentation.ErrorKindNotFound
	case vault.IsAccessDenied(err):
		return instrumentation.ErrorKindAccessDenied
	case vault.IsTransient(err):
		return instrumentation.ErrorKindTransient
	default:
		return "internal"
	}
}
