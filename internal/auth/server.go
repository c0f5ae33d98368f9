package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the authorization server configuration.
type Config struct {
	// PublicURL is the externally visible base URL of this server. When
	// empty, issuer and endpoint URLs are derived per request from the
	// forwarded protocol and host.
	PublicURL string

	// MaxClientsPerIP limits dynamic registrations per source IP (0 = no limit).
	MaxClientsPerIP int

	// ReaperInterval is how often expired codes and tokens are swept.
	// Default: DefaultReaperInterval.
	ReaperInterval time.Duration

	// RateLimit configures per-IP rate limiting on the protocol endpoints.
	RateLimit RateLimitConfig

	// OnReaped, when set, is called with the number of entries removed by
	// each expiry sweep that removed anything.
	OnReaped func(count int)

	// Logger for structured logging (optional, uses default if not provided).
	Logger *slog.Logger
}

// Server is the embedded OAuth 2.1 authorization server. It owns the client,
// code and token stores plus the background expiry reaper; construct one per
// process (or per test) and pass it to every handler that needs it.
type Server struct {
	config  Config
	clients *ClientStore
	codes   *CodeStore
	tokens  *TokenStore
	limiter *rateLimiter
	logger  *slog.Logger

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// NewServer creates a new authorization server and starts its expiry reaper.
// Call Shutdown to stop the reaper.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.ReaperInterval <= 0 {
		config.ReaperInterval = DefaultReaperInterval
	}

	var limiter *rateLimiter
	if config.RateLimit.Rate > 0 {
		limiter = newRateLimiter(config.RateLimit, logger)
		logger.Info("Per-IP rate limiting enabled on auth endpoints",
			"rate", config.RateLimit.Rate,
			"burst", config.RateLimit.effectiveBurst())
	}

	s := &Server{
		config:     config,
		clients:    NewClientStore(logger),
		codes:      NewCodeStore(logger),
		tokens:     NewTokenStore(logger),
		limiter:    limiter,
		logger:     logger,
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}

	go s.runReaper()

	return s
}

// Shutdown stops the background reaper and, when configured, the rate
// limiter eviction loop. Safe to call once.
func (s *Server) Shutdown() {
	close(s.reaperStop)
	<-s.reaperDone
	if s.limiter != nil {
		s.limiter.stop()
	}
}

// Clients returns the client registry.
func (s *Server) Clients() *ClientStore { return s.clients }

// Codes returns the authorization code store.
func (s *Server) Codes() *CodeStore { return s.codes }

// Tokens returns the access token store.
func (s *Server) Tokens() *TokenStore { return s.tokens }

// Routes registers the four protocol endpoints on the given mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/.well-known/oauth-authorization-server", http.HandlerFunc(s.ServeMetadata))
	mux.Handle("/register", s.rateLimited(http.HandlerFunc(s.ServeRegistration)))
	mux.Handle("/authorize", s.rateLimited(http.HandlerFunc(s.ServeAuthorize)))
	mux.Handle("/token", s.rateLimited(http.HandlerFunc(s.ServeToken)))
}

// issuer returns the externally visible base URL, preferring the configured
// public URL and otherwise deriving it from the forwarded protocol and host
// of the inbound request.
func (s *Server) issuer(r *http.Request) string {
	if s.config.PublicURL != "" {
		return strings.TrimSuffix(s.config.PublicURL, "/")
	}

	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	return scheme + "://" + host
}

// ServeMetadata serves the OAuth 2.0 Authorization Server Metadata (RFC 8414).
func (s *Server) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := s.issuer(r)
	metadata := ServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/authorize",
		TokenEndpoint:                     issuer + "/token",
		RegistrationEndpoint:              issuer + "/register",
		ResponseTypesSupported:            SupportedResponseTypes,
		GrantTypesSupported:               SupportedGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
		ScopesSupported:                   SupportedScopes,
	}

	s.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		s.logger.Error("Failed to encode authorization server metadata", "error", err)
	}
}

// ServeRegistration handles Dynamic Client Registration (RFC 7591).
func (s *Server) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, ErrInvalidRequest("failed to parse registration request"))
		return
	}

	clientIP := getClientIP(r, s.config.RateLimit.TrustProxy)
	if err := s.clients.CheckIPLimit(clientIP, s.config.MaxClientsPerIP); err != nil {
		s.logger.Warn("Client registration limit exceeded",
			"client_ip", clientIP,
			"limit", s.config.MaxClientsPerIP)
		s.writeError(w, NewError("invalid_request", "client registration limit exceeded", http.StatusTooManyRequests))
		return
	}

	resp, oauthErr := s.clients.Register(&req, clientIP)
	if oauthErr != nil {
		s.writeError(w, oauthErr)
		return
	}

	s.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode registration response", "error", err)
	}
}

// ServeAuthorize handles the authorization endpoint. Validation
// short-circuits at the first failure with a distinct plain-text rejection.
// The caller-supplied client_id is trusted verbatim (no registry lookup) and
// authorization is auto-granted for every syntactically valid request; there
// is no interactive consent step in this single-authority deployment.
func (s *Server) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	responseType := query.Get("response_type")
	codeChallenge := query.Get("code_challenge")
	codeChallengeMethod := query.Get("code_challenge_method")
	state := query.Get("state")

	if clientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	if responseType != "code" {
		http.Error(w, "unsupported response_type: only \"code\" is supported", http.StatusBadRequest)
		return
	}

	if redirectURI == "" {
		http.Error(w, "redirect_uri is required", http.StatusBadRequest)
		return
	}

	if codeChallenge == "" {
		http.Error(w, "code_challenge is required (PKCE)", http.StatusBadRequest)
		return
	}

	if codeChallengeMethod == "" {
		codeChallengeMethod = "plain"
	}

	code, err := NewAuthorizationCode()
	if err != nil {
		s.logger.Error("Failed to generate authorization code", "error", err)
		http.Error(w, "failed to generate authorization code", http.StatusInternalServerError)
		return
	}

	s.codes.Save(&AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           time.Now().Add(AuthorizationCodeTTL),
	})

	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	redirectQuery := redirectURL.Query()
	redirectQuery.Set("code", code)
	if state != "" {
		// Echoed verbatim; the caller uses it for CSRF binding on its side.
		redirectQuery.Set("state", state)
	}
	redirectURL.RawQuery = redirectQuery.Encode()

	s.logger.Info("Authorization granted",
		"client_id", clientID,
		"redirect_uri", redirectURI,
		"code_challenge_method", codeChallengeMethod,
	)

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// ServeToken handles the token endpoint.
func (s *Server) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, oauthErr := parseTokenRequest(r)
	if oauthErr != nil {
		s.writeError(w, oauthErr)
		return
	}

	if req.GrantType != "authorization_code" {
		s.writeError(w, ErrUnsupportedGrantType("grant_type must be authorization_code"))
		return
	}

	if req.Code == "" {
		s.writeError(w, ErrInvalidRequest("code is required"))
		return
	}

	snapshot, err := s.codes.Get(req.Code)
	if err != nil {
		s.writeError(w, codeLifecycleError(err))
		return
	}

	if req.ClientID != "" && req.ClientID != snapshot.ClientID {
		s.writeError(w, ErrInvalidGrant("client_id does not match authorization code"))
		return
	}

	// PKCE is the mandatory proof of possession; a client_secret on top of
	// it is verified when supplied, so confidential clients registered via
	// /register cannot be impersonated with a leaked code and verifier.
	if req.ClientSecret != "" {
		if err := s.clients.ValidateClientSecret(snapshot.ClientID, req.ClientSecret); err != nil {
			s.logger.Warn("Client authentication failed at token endpoint",
				"client_id", snapshot.ClientID,
			)
			s.writeError(w, ErrInvalidClient("client authentication failed"))
			return
		}
	}

	if req.RedirectURI != "" && req.RedirectURI != snapshot.RedirectURI {
		s.writeError(w, ErrInvalidGrant("redirect_uri does not match authorization code"))
		return
	}

	if req.CodeVerifier == "" {
		s.writeError(w, ErrInvalidRequest("code_verifier is required (PKCE)"))
		return
	}

	if !ValidateCodeVerifierFormat(req.CodeVerifier) {
		s.writeError(w, ErrInvalidRequest("code_verifier is malformed (RFC 7636 section 4.1)"))
		return
	}

	if !VerifyCodeChallenge(req.CodeVerifier, snapshot.CodeChallenge, snapshot.CodeChallengeMethod) {
		s.logger.Warn("PKCE verification failed",
			"client_id", snapshot.ClientID,
			"code_challenge_method", snapshot.CodeChallengeMethod,
		)
		s.writeError(w, ErrInvalidGrant("PKCE verification failed"))
		return
	}

	// The consume transition is serialized by the code store; concurrent
	// exchanges of the same code get exactly one success here.
	if err := s.codes.Consume(req.Code); err != nil {
		s.writeError(w, codeLifecycleError(err))
		return
	}

	accessToken, err := NewAccessToken()
	if err != nil {
		s.logger.Error("Failed to generate access token", "error", err)
		s.writeError(w, ErrServerError("failed to generate access token"))
		return
	}

	// The token is bound to the client the code was issued for, never to
	// the client_id the caller supplied at exchange time.
	s.tokens.Save(&AccessToken{
		Token:     accessToken,
		ClientID:  snapshot.ClientID,
		ExpiresAt: time.Now().Add(AccessTokenTTL),
	})

	s.logger.Info("Issued access token",
		"client_id", snapshot.ClientID,
		"token_hash", hashForLogging(accessToken),
	)

	s.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(AccessTokenTTL.Seconds()),
	}); err != nil {
		s.logger.Error("Failed to encode token response", "error", err)
	}
}

// parseTokenRequest accepts either a form-encoded or a JSON token request.
func parseTokenRequest(r *http.Request) (*TokenRequest, *Error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, ErrInvalidRequest("failed to parse request body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, ErrInvalidRequest("failed to parse request body")
	}

	return &TokenRequest{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		ClientID:     r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		CodeVerifier: r.FormValue("code_verifier"),
	}, nil
}

// codeLifecycleError maps code store sentinel errors onto invalid_grant
// responses with distinct descriptions.
func codeLifecycleError(err error) *Error {
	switch err {
	case ErrCodeExpired:
		return ErrInvalidGrant("authorization code expired")
	case ErrCodeUsed:
		return ErrInvalidGrant("authorization code already used")
	default:
		return ErrInvalidGrant("invalid authorization code")
	}
}

// writeError writes an OAuth JSON error response.
func (s *Server) writeError(w http.ResponseWriter, oauthErr *Error) {
	s.logger.Debug("OAuth error",
		"code", oauthErr.Code,
		"description", oauthErr.Description,
		"status", oauthErr.Status)

	s.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(oauthErr.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

// setSecurityHeaders sets browser-facing security headers on protocol responses.
func (s *Server) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")
}

// rateLimited wraps a handler with the per-IP limiter when one is configured.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.middleware(next, s.writeError)
}
