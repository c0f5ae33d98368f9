package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretSource resolves the pre-shared secret for static token mode. The
// resolution may touch slow storage; callers cache the result for the
// process lifetime via CachedSource.
type SecretSource interface {
	Secret() (string, error)
}

// StaticSecret is a SecretSource backed by a directly configured value.
type StaticSecret string

// Secret returns the configured value.
func (s StaticSecret) Secret() (string, error) {
	if s == "" {
		return "", fmt.Errorf("static token is empty")
	}
	return string(s), nil
}

// FileSecret is a SecretSource that reads the secret from a file, the usual
// hand-off point for secret managers that materialize secrets on disk.
type FileSecret string

// Secret reads and trims the file contents.
func (f FileSecret) Secret() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("token file %s is empty", string(f))
	}

	return secret, nil
}

// CachedSource wraps a SecretSource and resolves it exactly once, caching
// both the value and any resolution error for the process lifetime.
type CachedSource struct {
	source SecretSource
	once   sync.Once
	secret string
	err    error
}

// NewCachedSource creates a caching wrapper around source.
func NewCachedSource(source SecretSource) *CachedSource {
	return &CachedSource{source: source}
}

// Secret resolves the underlying source on first call and returns the cached
// result thereafter.
func (c *CachedSource) Secret() (string, error) {
	c.once.Do(func() {
		c.secret, c.err = c.source.Secret()
	})
	return c.secret, c.err
}
