package auth

import "time"

// Code and token lifetimes
const (
	// AuthorizationCodeTTL is how long authorization codes are valid (10 minutes)
	AuthorizationCodeTTL = 10 * time.Minute

	// AccessTokenTTL is the access token expiry (1 hour)
	AccessTokenTTL = 1 * time.Hour

	// DefaultReaperInterval is how often expired codes and tokens are swept
	DefaultReaperInterval = 5 * time.Minute

	// DefaultRateLimitCleanupInterval is how often idle per-IP limiters are evicted
	DefaultRateLimitCleanupInterval = 5 * time.Minute

	// InactiveLimiterWindow is the idle time after which a per-IP limiter is evicted
	InactiveLimiterWindow = 10 * time.Minute
)

// Token generation lengths (random bytes before base64url encoding)
const (
	// ClientIDLength is the number of random bytes in generated client IDs
	ClientIDLength = 32

	// ClientSecretLength is the number of random bytes in generated client secrets
	ClientSecretLength = 48

	// AuthorizationCodeLength is the number of random bytes in authorization codes
	AuthorizationCodeLength = 32

	// AccessTokenByteLength is the number of random bytes in access tokens
	AccessTokenByteLength = 64
)

// PKCE verifier bounds (RFC 7636 section 4.1)
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
)

// Protocol-level error codes carried in JSON-RPC error envelopes on
// unauthorized or failed protected calls.
const (
	RPCCodeUnauthorized = -32001
	RPCCodeInternal     = -32000
)

// BearerRealm is the realm reported in WWW-Authenticate challenges.
const BearerRealm = "mcp"

// Advertised server capabilities
var (
	// SupportedResponseTypes are the response types supported by the
	// authorization endpoint
	SupportedResponseTypes = []string{"code"}

	// SupportedGrantTypes are the grant types supported by the token endpoint
	SupportedGrantTypes = []string{"authorization_code"}

	// SupportedTokenAuthMethods are the supported token endpoint auth methods
	SupportedTokenAuthMethods = []string{"none", "client_secret_post"}

	// SupportedCodeChallengeMethods are the PKCE methods accepted at the
	// authorization endpoint
	SupportedCodeChallengeMethods = []string{"S256", "plain"}

	// SupportedScopes is the single undifferentiated scope granted to every
	// client; scope-based authorization is not implemented
	SupportedScopes = []string{"mcp:tools"}

	// LoopbackHosts are the hosts accepted for non-https redirect URIs
	LoopbackHosts = []string{"localhost", "127.0.0.1"}
)
