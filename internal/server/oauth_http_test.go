package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/premachb/obsidian-remote-mcp/internal/auth"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{
			name:    "valid HTTPS URL",
			baseURL: "https://mcp.example.com",
			wantErr: false,
		},
		{
			name:    "valid HTTP localhost",
			baseURL: "http://localhost:8080",
			wantErr: false,
		},
		{
			name:    "valid HTTP 127.0.0.1",
			baseURL: "http://127.0.0.1:8080",
			wantErr: false,
		},
		{
			name:    "valid HTTP ::1 (IPv6 loopback)",
			baseURL: "http://[::1]:8080",
			wantErr: false,
		},
		{
			name:    "invalid HTTP non-localhost",
			baseURL: "http://mcp.example.com",
			wantErr: true,
		},
		{
			name:    "invalid HTTP with localhost substring",
			baseURL: "http://localhost.example.com",
			wantErr: true,
		},
		{
			name:    "invalid HTTP with 127.0.0.1 in domain",
			baseURL: "http://127.0.0.1.example.com",
			wantErr: true,
		},
		{
			name:    "empty URL",
			baseURL: "",
			wantErr: true,
		},
		{
			name:    "invalid URL format",
			baseURL: "not a url",
			wantErr: true,
		},
		{
			name:    "invalid scheme",
			baseURL: "ftp://example.com",
			wantErr: true,
		},
		{
			name:    "HTTPS with path",
			baseURL: "https://mcp.example.com/api",
			wantErr: false,
		},
		{
			name:    "HTTPS with port",
			baseURL: "https://mcp.example.com:8443",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPSRequirement() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newTestServerContext(t *testing.T) *ServerContext {
	t.Helper()
	sc, err := NewServerContext(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestNewHTTPServer(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("test", "0.0.1")

	t.Run("oauth mode wires the embedded authorization server", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeOAuth,
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}
		if s.AuthServer() == nil {
			t.Error("expected authorization server to be created")
		}
		if sc.AuthServer() != s.AuthServer() {
			t.Error("expected authorization server to be attached to the server context")
		}
	})

	t.Run("static mode requires a token source", func(t *testing.T) {
		sc := newTestServerContext(t)
		_, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeStatic,
		})
		if err == nil {
			t.Fatal("expected error for static mode without a token source")
		}
	})

	t.Run("static mode with token source", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL:    "http://localhost:8080",
			AuthMode:     AuthModeStatic,
			StaticSecret: auth.StaticSecret("test-secret-token"),
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}
		if s.AuthServer() != nil {
			t.Error("static mode should not create an authorization server")
		}
	})

	t.Run("none mode", func(t *testing.T) {
		sc := newTestServerContext(t)
		if _, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeNone,
		}); err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}
	})

	t.Run("unsupported auth mode", func(t *testing.T) {
		sc := newTestServerContext(t)
		if _, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthMode("basic"),
		}); err == nil {
			t.Fatal("expected error for unsupported auth mode")
		}
	})

	t.Run("rejects non-loopback HTTP base URL", func(t *testing.T) {
		sc := newTestServerContext(t)
		if _, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://mcp.example.com",
			AuthMode:  AuthModeNone,
		}); err == nil {
			t.Fatal("expected error for HTTP base URL outside loopback")
		}
	})
}

func TestHTTPServerHandler(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("test", "0.0.1")

	t.Run("health endpoints are reachable without auth", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeOAuth,
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}

		handler := s.Handler()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET /healthz = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("oauth mode rejects /mcp without a token", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeOAuth,
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}

		handler := s.Handler()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("POST /mcp without token = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Error("expected WWW-Authenticate challenge header")
		}
	})

	t.Run("oauth mode serves authorization server metadata", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeOAuth,
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}

		handler := s.Handler()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET metadata = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("oauth mode derives issuer from forwarded headers when no public URL is set", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL: "http://localhost:8080",
			AuthMode:  AuthModeOAuth,
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}

		handler := s.Handler()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "mcp.example.com")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET metadata = %d, want %d", rec.Code, http.StatusOK)
		}

		var metadata struct {
			Issuer string `json:"issuer"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&metadata); err != nil {
			t.Fatalf("decoding metadata: %v", err)
		}
		if metadata.Issuer != "https://mcp.example.com" {
			t.Errorf("issuer = %s, want https://mcp.example.com", metadata.Issuer)
		}
	})

	t.Run("static mode rejects a wrong token", func(t *testing.T) {
		sc := newTestServerContext(t)
		s, err := NewHTTPServer(mcpSrv, sc, HTTPServerConfig{
			PublicURL:    "http://localhost:8080",
			AuthMode:     AuthModeStatic,
			StaticSecret: auth.StaticSecret("correct-token"),
		})
		if err != nil {
			t.Fatalf("NewHTTPServer() error = %v", err)
		}

		handler := s.Handler()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Authorization", "Bearer wrong-token")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("POST /mcp with wrong token = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)

		rw.WriteHeader(http.StatusNotFound)

		if rw.statusCode != http.StatusNotFound {
			t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusNotFound)
		}
	})

	t.Run("defaults to 200", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)

		// Don't call WriteHeader, check default
		if rw.statusCode != http.StatusOK {
			t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
		}
	})

	t.Run("passes write header to underlying writer", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)

		rw.WriteHeader(http.StatusCreated)

		if recorder.Code != http.StatusCreated {
			t.Errorf("recorder.Code = %d, want %d", recorder.Code, http.StatusCreated)
		}
	})
}

func TestInstrumentationMiddleware(t *testing.T) {
	t.Run("calls next handler when no metrics", func(t *testing.T) {
		server := &HTTPServer{} // No instrumentation set
		called := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			called = true
		})

		handler := server.instrumentationMiddleware(next)
		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if !called {
			t.Error("expected next handler to be called")
		}
	})
}
