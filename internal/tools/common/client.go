package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/premachb/obsidian-remote-mcp/internal/auth"
)

// ClientFromRequest returns the OAuth client ID of the caller, as established
// by the bearer token validation middleware. Returns "" for unauthenticated
// transports (stdio, static token mode).
func ClientFromRequest(ctx context.Context) string {
	if clientID, ok := auth.ClientFromContext(ctx); ok {
		return clientID
	}
	return ""
}

// ValidateNotePath checks that a vault path argument is usable: non-empty,
// relative, and free of parent-directory segments. The vault backend resolves
// paths against its root, so anything that could escape it is rejected here
// before a request is made.
func ValidateNotePath(path string) error {
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must be relative to the vault root: %s", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("path must not contain parent directory segments: %s", path)
		}
	}
	return nil
}
