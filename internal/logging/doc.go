// Package logging provides structured logging utilities for the obsidian-remote-mcp application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Sensitive-value sanitization (client ID hashing, token masking)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "vault.read")
//	logger.Info("note read",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("token issued",
//	    logging.ClientHash(clientID))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Client identifiers are hashed to allow correlation without exposure
//   - Tokens are never logged directly
package logging
