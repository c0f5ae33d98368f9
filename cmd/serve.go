package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/premachb/obsidian-remote-mcp/internal/auth"
	"github.com/premachb/obsidian-remote-mcp/internal/instrumentation"
	"github.com/premachb/obsidian-remote-mcp/internal/server"
	"github.com/premachb/obsidian-remote-mcp/internal/tools/vault_tools"
	"github.com/premachb/obsidian-remote-mcp/internal/vault"
)

// VaultConfig holds the connection settings for the Obsidian Local REST API
type VaultConfig struct {
	// URL is the base URL of the Local REST API (e.g., http://127.0.0.1:27123)
	URL string

	// APIKey authenticates against the Local REST API
	APIKey string

	// APIKeyFile is read instead when APIKey is empty
	APIKeyFile string
}

// AuthConfig holds the authentication settings for the HTTP transport
type AuthConfig struct {
	// Mode is oauth, static, or none
	Mode string

	// StaticToken is the pre-shared bearer token for static mode
	StaticToken string

	// StaticTokenFile is read lazily instead when StaticToken is empty
	StaticTokenFile string

	// MaxClientsPerIP limits dynamic client registrations per source IP
	MaxClientsPerIP int

	// RateLimitRate is requests per second per IP on the auth endpoints (0 = off)
	RateLimitRate int

	// RateLimitBurst is the burst size per IP
	RateLimitBurst int

	// TrustProxy trusts X-Forwarded-For when resolving client IPs
	TrustProxy bool
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode bool
		transport string
		httpAddr  string
		yolo      bool
		publicURL string

		vaultConfig VaultConfig
		authConfig  AuthConfig

		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing note tools over an
Obsidian vault.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  operations. Use --yolo to enable note writes.

Vault Connection:
  The server talks to the Obsidian Local REST API plugin. Configure it with
  --vault-url and --vault-api-key (or --vault-api-key-file), or the
  OBSIDIAN_MCP_VAULT_URL / OBSIDIAN_MCP_VAULT_API_KEY env vars.

Authentication (HTTP transport):
  oauth (default): the server runs its own OAuth 2.1 authorization server.
    MCP clients discover it via /.well-known/oauth-authorization-server,
    register dynamically, and complete an authorization-code + PKCE flow.
  static: a single pre-shared bearer token, from --static-token or
    --static-token-file.
  none: no authentication. Development only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fill unset values from the environment
			loadServeEnvVars(cmd, &vaultConfig, &authConfig, &publicURL)

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			return runServe(transport, debugMode, httpAddr, yolo, publicURL, vaultConfig, authConfig, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or http")
	cmd.Flags().StringVar(&httpAddr, "addr", ":8080", "HTTP server address (for http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (note creation and updates). Default is read-only mode.")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Public base URL of this server (http transport only). Used as the OAuth issuer. Can also use OBSIDIAN_MCP_PUBLIC_URL env var. Example: https://mcp.example.com")

	// Vault connection flags
	cmd.Flags().StringVar(&vaultConfig.URL, "vault-url", "http://127.0.0.1:27123", "Base URL of the Obsidian Local REST API. Can also use OBSIDIAN_MCP_VAULT_URL env var.")
	cmd.Flags().StringVar(&vaultConfig.APIKey, "vault-api-key", "", "API key for the Obsidian Local REST API. Can also use OBSIDIAN_MCP_VAULT_API_KEY env var.")
	cmd.Flags().StringVar(&vaultConfig.APIKeyFile, "vault-api-key-file", "", "File containing the Local REST API key. Can also use OBSIDIAN_MCP_VAULT_API_KEY_FILE env var.")

	// Authentication flags (HTTP transport only)
	cmd.Flags().StringVar(&authConfig.Mode, "auth-mode", "oauth", "Authentication mode for the /mcp endpoint: oauth, static, or none. Can also use OBSIDIAN_MCP_AUTH_MODE env var.")
	cmd.Flags().StringVar(&authConfig.StaticToken, "static-token", "", "Pre-shared bearer token for static auth mode. Can also use OBSIDIAN_MCP_STATIC_TOKEN env var.")
	cmd.Flags().StringVar(&authConfig.StaticTokenFile, "static-token-file", "", "File containing the pre-shared token for static auth mode. Can also use OBSIDIAN_MCP_STATIC_TOKEN_FILE env var.")
	cmd.Flags().IntVar(&authConfig.MaxClientsPerIP, "oauth-max-clients-per-ip", 10, "Maximum number of clients that can be registered per IP address (prevents DoS). Can also use OBSIDIAN_MCP_MAX_CLIENTS_PER_IP env var. Default: 10")
	cmd.Flags().IntVar(&authConfig.RateLimitRate, "auth-rate-limit", 10, "Requests per second per IP allowed on the auth endpoints (0 disables). Can also use OBSIDIAN_MCP_AUTH_RATE_LIMIT env var.")
	cmd.Flags().IntVar(&authConfig.RateLimitBurst, "auth-rate-limit-burst", 20, "Burst size per IP for the auth endpoint rate limiter.")
	cmd.Flags().BoolVar(&authConfig.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For / X-Real-IP when resolving client IPs. Only set behind a trusted proxy.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars loads serve configuration from environment variables.
// Environment variables only override flag values when the flag was not
// explicitly set.
func loadServeEnvVars(cmd *cobra.Command, vaultConfig *VaultConfig, authConfig *AuthConfig, publicURL *string) {
	if !cmd.Flags().Changed("vault-url") {
		if url := os.Getenv("OBSIDIAN_MCP_VAULT_URL"); url != "" {
			vaultConfig.URL = url
		}
	}
	if vaultConfig.APIKey == "" {
		vaultConfig.APIKey = os.Getenv("OBSIDIAN_MCP_VAULT_API_KEY")
	}
	if vaultConfig.APIKeyFile == "" {
		vaultConfig.APIKeyFile = os.Getenv("OBSIDIAN_MCP_VAULT_API_KEY_FILE")
	}

	if !cmd.Flags().Changed("auth-mode") {
		if mode := os.Getenv("OBSIDIAN_MCP_AUTH_MODE"); mode != "" {
			authConfig.Mode = mode
		}
	}
	if authConfig.StaticToken == "" {
		authConfig.StaticToken = os.Getenv("OBSIDIAN_MCP_STATIC_TOKEN")
	}
	if authConfig.StaticTokenFile == "" {
		authConfig.StaticTokenFile = os.Getenv("OBSIDIAN_MCP_STATIC_TOKEN_FILE")
	}
	if !cmd.Flags().Changed("oauth-max-clients-per-ip") {
		if envMax := os.Getenv("OBSIDIAN_MCP_MAX_CLIENTS_PER_IP"); envMax != "" {
			if maxClients, err := strconv.Atoi(envMax); err == nil && maxClients > 0 {
				authConfig.MaxClientsPerIP = maxClients
			}
		}
	}
	if !cmd.Flags().Changed("auth-rate-limit") {
		if envRate := os.Getenv("OBSIDIAN_MCP_AUTH_RATE_LIMIT"); envRate != "" {
			if rate, err := strconv.Atoi(envRate); err == nil && rate >= 0 {
				authConfig.RateLimitRate = rate
			}
		}
	}

	if *publicURL == "" {
		*publicURL = os.Getenv("OBSIDIAN_MCP_PUBLIC_URL")
	}
}

// resolveVaultAPIKey returns the API key from the direct value or the file.
func resolveVaultAPIKey(config VaultConfig) (string, error) {
	if config.APIKey != "" {
		return config.APIKey, nil
	}
	if config.APIKeyFile != "" {
		key, err := auth.FileSecret(config.APIKeyFile).Secret()
		if err != nil {
			return "", fmt.Errorf("failed to read vault API key: %w", err)
		}
		return key, nil
	}
	return "", fmt.Errorf("vault API key is required: set --vault-api-key, --vault-api-key-file, or OBSIDIAN_MCP_VAULT_API_KEY")
}

// staticSecretSource builds the token source for static auth mode. File-backed
// tokens are resolved lazily and cached for the process lifetime.
func staticSecretSource(config AuthConfig) (auth.SecretSource, error) {
	switch {
	case config.StaticToken != "":
		return auth.StaticSecret(config.StaticToken), nil
	case config.StaticTokenFile != "":
		return auth.NewCachedSource(auth.FileSecret(config.StaticTokenFile)), nil
	default:
		return nil, fmt.Errorf("static auth mode requires --static-token or --static-token-file")
	}
}

func runServe(transport string, debugMode bool, httpAddr string, yolo bool, publicURL string, vaultConfig VaultConfig, authConfig AuthConfig, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Structured logging goes to stderr so stdio transport stays clean
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Connect to the vault backend
	apiKey, err := resolveVaultAPIKey(vaultConfig)
	if err != nil {
		return err
	}
	vaultClient, err := vault.NewClient(vaultConfig.URL, apiKey)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx, vaultClient)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Attach metrics and audit logging for tool instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider, instrConfig.AuditLogging)
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("obsidian-remote-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo

	// Log the mode for visibility (only for non-stdio transports)
	if transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "http":
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, httpAddr, publicURL, authConfig, metricsConfig)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tool groups
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	if err := vault_tools.RegisterVaultTools(mcpSrv, ctx, readOnly); err != nil {
		return fmt.Errorf("failed to register vault tools: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, addr string, publicURL string, authConfig AuthConfig, metricsConfig MetricsConfig) error {
	// The OAuth issuer stays pinned to the configured URL; when none is
	// configured it is left empty so the auth server derives the issuer
	// per request from the Host and X-Forwarded-* headers.
	issuerURL := publicURL

	// Determine the displayed base URL from flag, environment variable,
	// or auto-detection
	if publicURL == "" {
		// Fall back to auto-detection for local development
		publicURL = fmt.Sprintf("http://%s", addr)
		if addr[0] == ':' {
			publicURL = fmt.Sprintf("http://localhost%s", addr)
		}
		log.Printf("No public URL configured, using auto-detected: %s", publicURL)
		log.Printf("For deployed instances, set --public-url flag or OBSIDIAN_MCP_PUBLIC_URL env var")
	} else {
		log.Printf("Using configured public URL: %s", publicURL)
	}

	config := server.HTTPServerConfig{
		PublicURL: publicURL,
		AuthMode:  server.AuthMode(authConfig.Mode),
		AuthConfig: auth.Config{
			PublicURL:       issuerURL,
			MaxClientsPerIP: authConfig.MaxClientsPerIP,
			RateLimit: auth.RateLimitConfig{
				Rate:       authConfig.RateLimitRate,
				Burst:      authConfig.RateLimitBurst,
				TrustProxy: authConfig.TrustProxy,
			},
		},
	}

	if server.AuthMode(authConfig.Mode) == server.AuthModeStatic {
		source, err := staticSecretSource(authConfig)
		if err != nil {
			return err
		}
		config.StaticSecret = source
	}

	httpServer, err := server.NewHTTPServer(mcpSrv, serverContext, config)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	fmt.Printf("Streamable HTTP server starting on %s\n", addr)
	fmt.Printf("  MCP endpoint: /mcp (auth mode: %s)\n", authConfig.Mode)
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if server.AuthMode(authConfig.Mode) == server.AuthModeOAuth {
		fmt.Printf("  OAuth metadata: /.well-known/oauth-authorization-server\n")
		fmt.Printf("  Authorization Server: %s\n", publicURL)
		fmt.Println("\nClients must complete the OAuth flow to access this server.")
		fmt.Println("MCP clients (e.g., Cursor, Claude Desktop) handle this automatically.")
	}
	if metricsConfig.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsConfig.Addr)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	// Flip readiness once the listener goroutine is running
	httpServer.HealthChecker().SetReady(true)

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
