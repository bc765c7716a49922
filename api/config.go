// Package api provides the HTTP API of the picture messenger: accounts,
// sessions, pair dialogues, picture messages and user suggestions.
package api

import (
	"time"

	"github.com/papercomputeco/courier/pkg/cas"
)

const (
	// DefaultPageSize is used when a request does not ask for a page size.
	DefaultPageSize = 20

	// DefaultMaxPageSize caps the page_size query parameter.
	DefaultMaxPageSize = 100

	// DefaultBodyLimit caps request bodies (8 MiB).
	DefaultBodyLimit = 8 * 1024 * 1024

	// DefaultUploadRate is the sustained uploads per second per user.
	DefaultUploadRate = 2.0

	// DefaultUploadBurst is the upload bucket size per user.
	DefaultUploadBurst = 10
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// BodyLimit caps request bodies in bytes.
	BodyLimit int

	// UploadRate and UploadBurst size the per-user picture upload limiter.
	// A negative UploadRate disables limiting.
	UploadRate  float64
	UploadBurst int

	// PageSize and MaxPageSize bound paginated listings.
	PageSize    int
	MaxPageSize int

	// SessionTTL is how long a login stays valid.
	SessionTTL time.Duration

	// Events receives message.sent events. Optional.
	Events cas.Enqueuer
}

func (c *Config) applyDefaults() {
	if c.BodyLimit <= 0 {
		c.BodyLimit = DefaultBodyLimit
	}
	if c.UploadRate == 0 {
		c.UploadRate = DefaultUploadRate
	}
	if c.UploadBurst <= 0 {
		c.UploadBurst = DefaultUploadBurst
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = DefaultMaxPageSize
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	c.PageSize = min(c.PageSize, c.MaxPageSize)
}
