package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is the type for context keys.
type contextKey string

// clientContextKey is the key for storing the authenticated client ID in the
// request context.
const clientContextKey contextKey = "auth_client"

// ClientFromContext returns the client ID the presented access token is
// bound to, when the request passed the bearer gate in OAuth mode.
func ClientFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientContextKey).(string)
	return clientID, ok
}

// rpcError is the structured protocol-error body returned to unauthorized
// or failed protected calls.
type rpcError struct {
	JSONRPC string `json:"jsonrpc"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID any `json:"id"`
}

// writeRPCError writes a JSON-RPC style error body with the given HTTP
// status and protocol error code.
func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	body := rpcError{JSONRPC: "2.0", ID: nil}
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// challenge sets the WWW-Authenticate header for a bearer rejection.
func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", BearerRealm))
}

// splitBearer splits an Authorization header into exactly two
// space-separated tokens with the literal scheme "Bearer". Returns the token
// and whether the header was well formed.
func splitBearer(authHeader string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" || strings.Contains(parts[1], " ") {
		return "", false
	}
	return parts[1], true
}

// BearerGate returns middleware that validates OAuth access tokens on every
// protected request. Requests to an exempt path (health checks) bypass the
// gate unconditionally. Validation has no side effect on live tokens;
// expired tokens are evicted lazily by the store.
func (s *Server) BearerGate(next http.Handler, exemptPaths ...string) http.Handler {
	exempt := pathSet(exemptPaths)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			challenge(w)
			writeRPCError(w, http.StatusUnauthorized, RPCCodeUnauthorized, "Missing Authorization header")
			return
		}

		token, ok := splitBearer(authHeader)
		if !ok {
			challenge(w)
			writeRPCError(w, http.StatusUnauthorized, RPCCodeUnauthorized, "Invalid Authorization header format")
			return
		}

		clientID, err := s.tokens.Validate(token)
		if err != nil {
			s.logger.Debug("Rejected bearer token",
				"token_hash", hashForLogging(token),
				"error", err)
			challenge(w)
			writeRPCError(w, http.StatusUnauthorized, RPCCodeUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), clientContextKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StaticGate gates protected requests behind a single pre-shared secret for
// local deployments. Mutually exclusive with the OAuth flow at deployment
// time: a process runs one gate or the other, never both.
type StaticGate struct {
	source SecretSource
	logger *slog.Logger
}

// NewStaticGate creates a static token gate. The source is resolved lazily
// on first use and cached for the process lifetime.
func NewStaticGate(source SecretSource, logger *slog.Logger) *StaticGate {
	if logger == nil {
		logger = slog.Default()
	}

	return &StaticGate{
		source: NewCachedSource(source),
		logger: logger,
	}
}

// Middleware applies the gate to a handler. Exempt paths (liveness checks)
// bypass it unconditionally.
func (g *StaticGate) Middleware(next http.Handler, exemptPaths ...string) http.Handler {
	exempt := pathSet(exemptPaths)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			challenge(w)
			writeRPCError(w, http.StatusUnauthorized, RPCCodeUnauthorized, "Missing Authorization header")
			return
		}

		token, ok := splitBearer(authHeader)
		if !ok {
			challenge(w)
			writeRPCError(w, http.StatusUnauthorized, RPCCodeUnauthorized, "Invalid Authorization header format")
			return
		}

		secret, err := g.source.Secret()
		if err != nil {
			// Operators get the detail; the caller gets a generic 500.
			g.logger.Error("Failed to resolve static token", "error", err)
			writeRPCError(w, http.StatusInternalServerError, RPCCodeInternal, "Server configuration error")
			return
		}

		if !SecretsEqual(token, secret) {
			g.logger.Warn("Static token mismatch", "token_hash", hashForLogging(token))
			writeRPCError(w, http.StatusForbidden, RPCCodeUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
