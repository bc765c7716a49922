package config

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event stream providers.
const (
	EventsNop   = "nop"
	EventsKafka = "kafka"
)

const (
	defaultDriver     = DriverSQLite
	defaultSQLitePath = "courier.sqlite"
	defaultAPIListen  = ":8000"

	// Multipart overhead on top of the 1 MiB canonical cap; raw encodings
	// such as BMP are larger than their canonical PNG.
	defaultBodyLimit   = 8 * 1024 * 1024
	defaultUploadRate  = 2.0
	defaultUploadBurst = 10

	defaultMaxBytes    = 1024 * 1024
	defaultMaxPixels   = 40_000_000
	defaultLockTimeout = "5s"

	defaultPageSize    = 20
	defaultMaxPageSize = 100

	defaultEventsProvider = EventsNop
	defaultEventsTopic    = "courier.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:     defaultDriver,
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen:      defaultAPIListen,
			BodyLimit:   defaultBodyLimit,
			UploadRate:  defaultUploadRate,
			UploadBurst: defaultUploadBurst,
		},
		Picture: PictureConfig{
			MaxBytes:    defaultMaxBytes,
			MaxPixels:   defaultMaxPixels,
			LockTimeout: defaultLockTimeout,
		},
		Search: SearchConfig{
			PageSize:    defaultPageSize,
			MaxPageSize: defaultMaxPageSize,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
