package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an OAuth 2.0 protocol error response.
type Error struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates a new OAuth protocol error.
func NewError(code, description string, status int) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors as reusable factories
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *Error {
		return NewError("invalid_request", desc, http.StatusBadRequest)
	}

	// ErrInvalidRedirectURI indicates a redirect URI is malformed or uses a
	// disallowed scheme or host
	ErrInvalidRedirectURI = func(desc string) *Error {
		return NewError("invalid_redirect_uri", desc, http.StatusBadRequest)
	}

	// ErrUnsupportedResponseType indicates a response type other than "code"
	ErrUnsupportedResponseType = func(desc string) *Error {
		return NewError("unsupported_response_type", desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates a grant type other than "authorization_code"
	ErrUnsupportedGrantType = func(desc string) *Error {
		return NewError("unsupported_grant_type", desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates failed client authentication at the token
	// endpoint
	ErrInvalidClient = func(desc string) *Error {
		return NewError("invalid_client", desc, http.StatusUnauthorized)
	}

	// ErrInvalidGrant indicates an authorization code lifecycle violation:
	// not found, expired, already used, mismatched binding, or a failed PKCE
	// verification
	ErrInvalidGrant = func(desc string) *Error {
		return NewError("invalid_grant", desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an unexpected internal failure; detail is
	// logged, never sent to the caller
	ErrServerError = func(desc string) *Error {
		return NewError("server_error", desc, http.StatusInternalServerError)
	}
)

// Store sentinel errors. Endpoints map these onto protocol errors with
// distinct descriptions so a client can tell the lifecycle states apart.
var (
	ErrCodeNotFound   = errors.New("authorization code not found")
	ErrCodeExpired    = errors.New("authorization code expired")
	ErrCodeUsed       = errors.New("authorization code already used")
	ErrTokenNotFound  = errors.New("access token not found")
	ErrTokenExpired   = errors.New("access token expired")
	ErrClientNotFound = errors.New("client not found")
)
