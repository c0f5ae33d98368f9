package auth

import "crypto/subtle"

// SecretsEqual compares two secrets in constant time. Unequal lengths are
// rejected up front; equal-length inputs are compared by accumulating the
// bitwise OR of XORed bytes so that the comparison never exits early at the
// first mismatch.
func SecretsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
