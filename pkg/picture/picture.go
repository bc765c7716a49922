// Package picture defines content-addressed picture records and the pure
// transformations that produce them: canonical encoding and fingerprinting.
package picture

import (
	"time"
)

const (
	// MaxBytes is the upper bound for canonical picture bytes (1 MiB).
	MaxBytes = 1024 * 1024

	// ContentType is the media type of canonical picture bytes.
	ContentType = "image/png"
)

// Record is a single stored picture. Records are immutable once created.
type Record struct {
	// ID is the opaque identity handed out to callers (UUIDv4).
	ID string `json:"id"`

	// Digest is the SHA-256 fingerprint of Data, hex-encoded.
	// Digests are lookup keys only and are not guaranteed to be unique.
	Digest string `json:"digest"`

	// Checksum is a secondary BLAKE2b-256 sum of Data. Backends use
	// (Digest, Checksum) as their uniqueness key.
	Checksum string `json:"checksum"`

	// Data holds the canonical bytes.
	Data []byte `json:"-"`

	// Size is len(Data).
	Size int `json:"size"`

	CreatedAt time.Time `json:"created_at"`
}
