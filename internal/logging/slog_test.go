package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "test_operation")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithTool(t *testing.T) {
	logger := slog.Default()
	result := WithTool(logger, "test_tool")
	if result == nil {
		t.Error("WithTool returned nil")
	}
}

func TestWithComponent(t *testing.T) {
	logger := slog.Default()
	result := WithComponent(logger, "vault")
	if result == nil {
		t.Error("WithComponent returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestComponentAttr(t *testing.T) {
	attr := Component("auth")
	if attr.Key != KeyComponent {
		t.Errorf("Component key = %q, want %q", attr.Key, KeyComponent)
	}
	if attr.Value.String() != "auth" {
		t.Errorf("Component value = %q, want %q", attr.Value.String(), "auth")
	}
}

func TestPathAttr(t *testing.T) {
	attr := Path("notes/inbox.md")
	if attr.Key != KeyPath {
		t.Errorf("Path key = %q, want %q", attr.Key, KeyPath)
	}
	if attr.Value.String() != "notes/inbox.md" {
		t.Errorf("Path value = %q, want %q", attr.Value.String(), "notes/inbox.md")
	}
}

func TestToolAttr(t *testing.T) {
	attr := Tool("vault_read_note")
	if attr.Key != KeyTool {
		t.Errorf("Tool key = %q, want %q", attr.Key, KeyTool)
	}
	if attr.Value.String() != "vault_read_note" {
		t.Errorf("Tool value = %q, want %q", attr.Value.String(), "vault_read_note")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestErr(t *testing.T) {
	// Test with error
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Test with nil - should return an empty group that slog will omit
	attr = Err(nil)
	// Empty Group has empty key
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeIdentifier(t *testing.T) {
	tests := []struct {
		id       string
		wantLen  int  // Expected length of result (0 for empty)
		hasValue bool // Whether result should have a value
	}{
		{"client-abc-123", 19, true}, // "id:" + 16 hex chars
		{"another-client", 19, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			result := AnonymizeIdentifier(tt.id)
			if tt.hasValue {
				if len(result) != tt.wantLen {
					t.Errorf("AnonymizeIdentifier(%q) length = %d, want %d", tt.id, len(result), tt.wantLen)
				}
				if result[:3] != "id:" {
					t.Errorf("AnonymizeIdentifier(%q) should start with 'id:', got %q", tt.id, result)
				}
			} else {
				if result != "" {
					t.Errorf("AnonymizeIdentifier(%q) = %q, want empty string", tt.id, result)
				}
			}
		})
	}

	// Test deterministic hashing
	hash1 := AnonymizeIdentifier("client-one")
	hash2 := AnonymizeIdentifier("client-one")
	if hash1 != hash2 {
		t.Error("AnonymizeIdentifier should return deterministic results")
	}

	// Test different identifiers produce different hashes
	hash3 := AnonymizeIdentifier("client-two")
	if hash1 == hash3 {
		t.Error("Different identifiers should produce different hashes")
	}
}

func TestClientHash(t *testing.T) {
	attr := ClientHash("client-abc-123")
	if attr.Key != KeyClientHash {
		t.Errorf("ClientHash key = %q, want %q", attr.Key, KeyClientHash)
	}
	if len(attr.Value.String()) != 19 {
		t.Errorf("ClientHash value length = %d, want 19", len(attr.Value.String()))
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"a_very_long_token_string", "[token:24 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusSuccess != "success" {
		t.Errorf("StatusSuccess = %q, want %q", StatusSuccess, "success")
	}
	if StatusError != "error" {
		t.Errorf("StatusError = %q, want %q", StatusError, "error")
	}
}
