package picture

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter computes a digest over canonical bytes.
type Fingerprinter func(data []byte) string

// Fingerprint returns the hex-encoded SHA-256 of data.
func Fingerprint(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Checksum returns the hex-encoded BLAKE2b-256 of data. Payloads that share a
// digest still get distinct (digest, checksum) keys.
func Checksum(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}
