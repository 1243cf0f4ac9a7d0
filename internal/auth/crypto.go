package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/blake2b"
)

// SecretsEqual compares two secrets in constant time. Both sides are hashed
// first so the comparison does not depend on their lengths.
func SecretsEqual(presented, expected string) bool {
	if expected == "" {
		return false
	}
	a := blake2b.Sum256([]byte(presented))
	b := blake2b.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
