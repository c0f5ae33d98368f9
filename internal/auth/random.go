package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generateSecureToken generates a cryptographically secure random token of
// the given byte length, base64url-encoded without padding.
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewClientID generates a random client ID.
func NewClientID() (string, error) {
	return generateSecureToken(ClientIDLength)
}

// NewClientSecret generates a random client secret for confidential clients.
func NewClientSecret() (string, error) {
	return generateSecureToken(ClientSecretLength)
}

// NewAuthorizationCode generates a random authorization code.
func NewAuthorizationCode() (string, error) {
	return generateSecureToken(AuthorizationCodeLength)
}

// NewAccessToken generates a random access token.
func NewAccessToken() (string, error) {
	return generateSecureToken(AccessTokenByteLength)
}
