// Package integrity computes the tamper-evidence digest over decoded answer
// strings. The digest is what would be anchored to an immutable ledger, so it
// must be computed from the exact string that gets persisted: recomputing
// from the stored string always reproduces the stored hash.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 of the UTF-8 bytes of the answer
// string. No trimming and no case transformation: the answer alphabet is
// already canonical uppercase and every byte is significant.
func Digest(answerString string) string {
	sum := sha256.Sum256([]byte(answerString))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the stored digest matches a recomputation from the
// stored answer string.
func Verify(answerString, digest string) bool {
	return Digest(answerString) == digest
}
