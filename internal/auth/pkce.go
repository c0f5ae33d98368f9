package auth

import (
	"crypto/sha256"
	"encoding/base64"
)

// ComputeCodeChallenge derives the S256 code challenge from a code verifier:
// BASE64URL(SHA256(ASCII(code_verifier))), without padding (RFC 7636).
func ComputeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// ValidateCodeVerifierFormat checks the RFC 7636 constraints on a
// code_verifier: length 43..128 over the unreserved character set.
func ValidateCodeVerifierFormat(verifier string) bool {
	if len(verifier) < MinCodeVerifierLength || len(verifier) > MaxCodeVerifierLength {
		return false
	}
	for _, c := range verifier {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// VerifyCodeChallenge validates that a presented code verifier matches the
// stored code challenge under the stored method. An empty method means the
// challenge was stored as plain text. Any other method never matches.
func VerifyCodeChallenge(verifier, challenge, method string) bool {
	switch method {
	case "S256":
		computed := ComputeCodeChallenge(verifier)
		return SecretsEqual(computed, challenge)
	case "plain", "":
		return SecretsEqual(verifier, challenge)
	default:
		return false
	}
}
