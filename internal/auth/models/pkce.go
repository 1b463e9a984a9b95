package models

import (
	"crypto/sha256"
	"encoding/base64"

	"fitgate/pkg/secrets"
)

// S256Challenge derives the RFC 7636 S256 challenge for a verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE reports whether verifier hashes to challenge. Verifiers outside
// the RFC 7636 length bounds never match.
func VerifyPKCE(verifier, challenge string) bool {
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	return secrets.Equal(S256Challenge(verifier), challenge)
}
