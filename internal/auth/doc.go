// Package auth implements the embedded OAuth 2.1 authorization server that
// gates the MCP endpoints: dynamic client registration (RFC 7591), the
// authorization-code grant with PKCE (RFC 7636), bearer access tokens with
// expiry, and server metadata discovery (RFC 8414).
//
// All state is in-memory and owned by a single Server instance; nothing is
// persisted across restarts. A static pre-shared-token mode is provided as a
// mutually exclusive alternative for local deployments.
package auth
