package server

import (
	"context"
	"sync"

	"github.com/premachb/obsidian-remote-mcp/internal/auth"
	"github.com/premachb/obsidian-remote-mcp/internal/instrumentation"
	"github.com/premachb/obsidian-remote-mcp/internal/vault"
)

// ServerContext holds the shared state for the MCP server: the vault backend
// client, the embedded authorization server, and observability hooks. It owns
// the lifecycle of everything it holds; Shutdown releases all of it.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	vaultClient *vault.Client
	authServer  *auth.Server
	provider    *instrumentation.Provider
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext creates a new server context around the given vault client.
func NewServerContext(ctx context.Context, vaultClient *vault.Client) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		vaultClient: vaultClient,
		shutdown:    false,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Vault returns the vault backend client.
func (sc *ServerContext) Vault() *vault.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.vaultClient
}

// SetVault replaces the vault backend client (used in tests).
func (sc *ServerContext) SetVault(client *vault.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.vaultClient = client
}

// AuthServer returns the embedded authorization server, or nil when running
// without OAuth (stdio transport or static token mode).
func (sc *ServerContext) AuthServer() *auth.Server {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.authServer
}

// SetAuthServer attaches the embedded authorization server. The server
// context takes over its shutdown.
func (sc *ServerContext) SetAuthServer(srv *auth.Server) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.authServer = srv
}

// SetInstrumentation attaches the instrumentation provider and derives the
// metrics recorder and audit logger from it.
func (sc *ServerContext) SetInstrumentation(provider *instrumentation.Provider, auditConfig instrumentation.AuditLoggingConfig) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.provider = provider
	if provider != nil {
		sc.metrics = provider.Metrics()
	}
	sc.auditLogger = instrumentation.NewAuditLoggerWithConfig(nil, auditConfig)
}

// SetMetrics replaces the metrics recorder directly (used in tests).
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// Metrics returns the metrics recorder, or nil if instrumentation is not
// configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil if instrumentation is not
// configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context and everything it owns.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	if sc.authServer != nil {
		sc.authServer.Shutdown()
	}
	sc.cancel()
	return nil
}
