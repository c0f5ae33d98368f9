// Package server provides the MCP server context and the OAuth-protected
// HTTP server for the obsidian-remote-mcp application.
//
// # Key Components
//
// ServerContext owns the shared state of a running server: the vault backend
// client, the embedded authorization server, and the instrumentation hooks.
// Shutting it down releases everything it holds.
//
// HTTPServer wraps the MCP streamable HTTP endpoint with authentication:
//   - oauth mode runs the embedded OAuth 2.1 authorization server
//     (metadata discovery per RFC 8414, dynamic client registration per
//     RFC 7591, PKCE authorization code grant) and gates /mcp on tokens
//     it issued
//   - static mode gates /mcp on a single pre-shared token
//   - none disables authentication for local development
//
// # Security Features
//
// The HTTP server includes security-focused defaults:
//   - HTTPS required for production (localhost exempt for development)
//   - PKCE required on every authorization (OAuth 2.1 compliance)
//   - Rate limiting per IP on the authorization endpoints
//   - Security headers on all authorization responses
//   - Audit logging for authentication events
//
// MetricsServer exposes Prometheus metrics on a dedicated port, isolated
// from application traffic.
package server
