package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/premachb/obsidian-remote-mcp/internal/auth"
	"github.com/premachb/obsidian-remote-mcp/internal/instrumentation"
)

// AuthMode selects how the /mcp endpoint is protected.
type AuthMode string

const (
	// AuthModeOAuth runs the embedded OAuth 2.1 authorization server and
	// validates bearer tokens it issued.
	AuthModeOAuth AuthMode = "oauth"

	// AuthModeStatic validates a single pre-shared bearer token.
	AuthModeStatic AuthMode = "static"

	// AuthModeNone disables authentication. Development only.
	AuthModeNone AuthMode = "none"
)

// HTTPServerConfig holds configuration for the MCP HTTP server.
type HTTPServerConfig struct {
	// PublicURL is the externally visible base URL of the server. Used as
	// the OAuth issuer and for HTTPS validation.
	PublicURL string

	// AuthMode selects oauth, static, or none.
	AuthMode AuthMode

	// StaticSecret supplies the pre-shared token in static mode.
	StaticSecret auth.SecretSource

	// AuthConfig configures the embedded authorization server in oauth mode.
	AuthConfig auth.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPServer serves the MCP streamable HTTP endpoint together with the
// embedded authorization server's endpoints and health checks.
type HTTPServer struct {
	mcpServer     *mcpserver.MCPServer
	authServer    *auth.Server
	staticGate    *auth.StaticGate
	healthChecker *HealthChecker
	serverContext *ServerContext
	config        HTTPServerConfig
	httpServer    *http.Server
	logger        *slog.Logger
}

// NewHTTPServer creates the HTTP front for the MCP server. In oauth mode it
// also creates and starts the embedded authorization server (including its
// expiry reaper); the caller owns shutdown via Shutdown or the server context.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext, config HTTPServerConfig) (*HTTPServer, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if err := validateHTTPSRequirement(config.PublicURL); err != nil {
		return nil, err
	}

	s := &HTTPServer{
		mcpServer:     mcpServer,
		healthChecker: NewHealthChecker(sc),
		serverContext: sc,
		config:        config,
		logger:        config.Logger,
	}

	switch config.AuthMode {
	case AuthModeOAuth:
		// AuthConfig.PublicURL is passed through as-is. An empty value
		// means the auth server derives the issuer per request from the
		// Host and X-Forwarded-* headers.
		authConfig := config.AuthConfig
		if authConfig.Logger == nil {
			authConfig.Logger = config.Logger
		}
		if authConfig.OnReaped == nil && sc != nil {
			authConfig.OnReaped = func(count int) {
				if m := sc.Metrics(); m != nil {
					m.RecordReapedEntries(context.Background(), count)
				}
			}
		}
		s.authServer = auth.NewServer(authConfig)
		sc.SetAuthServer(s.authServer)

	case AuthModeStatic:
		if config.StaticSecret == nil {
			return nil, fmt.Errorf("static auth mode requires a token source")
		}
		s.staticGate = auth.NewStaticGate(config.StaticSecret, config.Logger)

	case AuthModeNone:
		config.Logger.Warn("authentication disabled, /mcp is unprotected")

	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", config.AuthMode)
	}

	return s, nil
}

// Handler builds the full HTTP handler: authorization endpoints, health
// checks, and the protected MCP endpoint.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	s.healthChecker.RegisterHealthEndpoints(mux)

	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamable.ServeHTTP(w, r)
	})

	switch {
	case s.authServer != nil:
		s.authServer.Routes(mux)
		mux.Handle("/mcp", s.authServer.BearerGate(mcpHandler, "/healthz", "/readyz"))
	case s.staticGate != nil:
		mux.Handle("/mcp", s.staticGate.Middleware(mcpHandler, "/healthz", "/readyz"))
	default:
		mux.Handle("/mcp", mcpHandler)
	}

	return s.instrumentationMiddleware(mux)
}

// responseWriter captures the status code for instrumentation
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrumentationMiddleware records request metrics when instrumentation is
// enabled. It is a no-op passthrough otherwise.
func (s *HTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.serverContext == nil || s.serverContext.Metrics() == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		metrics := s.serverContext.Metrics()
		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))

		if r.Method == http.MethodPost {
			switch r.URL.Path {
			case "/token":
				if rw.statusCode == http.StatusOK {
					metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
					metrics.RecordTokenIssued(r.Context())
				} else {
					metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
				}
			case "/register":
				if rw.statusCode == http.StatusCreated {
					metrics.IncrementRegisteredClients(r.Context())
				}
			}
		}
	})
}

// Start starts the HTTP server in a blocking manner.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting MCP HTTP server",
		"addr", addr,
		"auth_mode", string(s.config.AuthMode),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.healthChecker.SetReady(false)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// AuthServer returns the embedded authorization server, or nil outside oauth
// mode. Exposed for testing.
func (s *HTTPServer) AuthServer() *auth.Server {
	return s.authServer
}

// HealthChecker returns the health checker for readiness control.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.healthChecker
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	// Parse URL to properly validate scheme and host
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
