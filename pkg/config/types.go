package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent courier configuration stored as config.toml
// in the .courier/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Picture     PictureConfig     `toml:"picture"`
	Search      SearchConfig      `toml:"search"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// BodyLimit caps request bodies in bytes.
	BodyLimit uint `toml:"body_limit,omitempty"`

	// UploadRate is the sustained picture uploads per second allowed per
	// user; a negative rate disables throttling. UploadBurst is the bucket size.
	UploadRate  float64 `toml:"upload_rate,omitempty"`
	UploadBurst uint    `toml:"upload_burst,omitempty"`
}

// PictureConfig bounds picture ingestion.
type PictureConfig struct {
	MaxBytes  uint `toml:"max_bytes,omitempty"`
	MaxPixels uint `toml:"max_pixels,omitempty"`

	// LockTimeout is a Go duration string, e.g. "5s".
	LockTimeout string `toml:"lock_timeout,omitempty"`
}

// SearchConfig holds pagination bounds for user suggestions.
type SearchConfig struct {
	PageSize    uint `toml:"page_size,omitempty"`
	MaxPageSize uint `toml:"max_page_size,omitempty"`
}

// EventStreamConfig selects where domain events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case DriverMemory, DriverSQLite, DriverPostgres:
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (expected memory, sqlite or postgres)", v)
			}
		},
	},
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen":       stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.body_limit":   uintKey("api.body_limit", func(c *Config) *uint { return &c.API.BodyLimit }),
	"api.upload_burst": uintKey("api.upload_burst", func(c *Config) *uint { return &c.API.UploadBurst }),
	"api.upload_rate": {
		get: func(c *Config) string {
			if c.API.UploadRate == 0 {
				return ""
			}
			return strconv.FormatFloat(c.API.UploadRate, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f == 0 {
				return fmt.Errorf("invalid value for api.upload_rate: %q", v)
			}
			c.API.UploadRate = f
			return nil
		},
	},

	"picture.max_bytes":  uintKey("picture.max_bytes", func(c *Config) *uint { return &c.Picture.MaxBytes }),
	"picture.max_pixels": uintKey("picture.max_pixels", func(c *Config) *uint { return &c.Picture.MaxPixels }),
	"picture.lock_timeout": {
		get: func(c *Config) string { return c.Picture.LockTimeout },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for picture.lock_timeout: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for picture.lock_timeout: must be positive")
			}
			c.Picture.LockTimeout = v
			return nil
		},
	},

	"search.page_size":     uintKey("search.page_size", func(c *Config) *uint { return &c.Search.PageSize }),
	"search.max_page_size": uintKey("search.max_page_size", func(c *Config) *uint { return &c.Search.MaxPageSize }),

	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventsNop, EventsKafka:
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (expected nop or kafka)", v)
			}
		},
	},
	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}
