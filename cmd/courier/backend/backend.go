// Package backend builds the storage driver, event publisher and picture
// store described by a resolved courier config.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/papercomputeco/courier/pkg/cas"
	"github.com/papercomputeco/courier/pkg/config"
	"github.com/papercomputeco/courier/pkg/dotdir"
	"github.com/papercomputeco/courier/pkg/eventstream"
	"github.com/papercomputeco/courier/pkg/eventstream/kafka"
	"github.com/papercomputeco/courier/pkg/eventstream/nop"
	"github.com/papercomputeco/courier/pkg/eventstream/worker"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
	"github.com/papercomputeco/courier/pkg/storage/inmemory"
	"github.com/papercomputeco/courier/pkg/storage/postgres"
	"github.com/papercomputeco/courier/pkg/storage/sqlite"
)

// ResolveSQLitePath anchors a relative database path in the .courier/
// directory. Absolute paths and ":memory:" are returned unchanged.
func ResolveSQLitePath(path, configDir string) (string, error) {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// NewDriver opens the storage backend selected by cfg.Storage.Driver.
func NewDriver(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.DriverSQLite, "":
		path, err := ResolveSQLitePath(cfg.Storage.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.DriverPostgres:
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires storage.postgres_dsn", config.DriverPostgres)
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

// NewPublisher creates the event publisher selected by cfg.EventStream.Provider.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.EventStream.Provider {
	case config.EventsNop, "":
		return nop.NewPublisher(), nil

	case config.EventsKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.EventStream.BrokerList(),
			Topic:   cfg.EventStream.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		logger.Info("publishing events to kafka",
			"brokers", cfg.EventStream.Brokers,
			"topic", pub.Topic(),
		)
		return pub, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.EventStream.Provider)
	}
}

// NewPictureStore creates the content-addressed store over driver.
func NewPictureStore(cfg *config.Config, driver storage.PictureDriver, events cas.Enqueuer, logger *slog.Logger) (*cas.Store, error) {
	lockTimeout, err := time.ParseDuration(cfg.Picture.LockTimeout)
	if cfg.Picture.LockTimeout != "" && err != nil {
		return nil, fmt.Errorf("invalid picture.lock_timeout %q: %w", cfg.Picture.LockTimeout, err)
	}

	return cas.NewStore(cas.Config{
		Driver:      driver,
		Codec:       picture.NewCodec(int(cfg.Picture.MaxPixels)),
		MaxBytes:    int(cfg.Picture.MaxBytes),
		LockTimeout: lockTimeout,
		Events:      events,
		Logger:      logger,
	})
}

// Backend is the storage, event and picture stack shared by commands.
type Backend struct {
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Events    *worker.Pool
	Pictures  *cas.Store
}

// Open builds the whole backend described by cfg. On error nothing is left open.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Backend, error) {
	driver, err := NewDriver(ctx, cfg, configDir, logger)
	if err != nil {
		return nil, err
	}

	pub, err := NewPublisher(cfg, logger)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher: pub,
		Logger:    logger,
	})
	if err != nil {
		_ = pub.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("could not create event worker pool: %w", err)
	}

	b := &Backend{
		Driver:    driver,
		Publisher: pub,
		Events:    pool,
	}

	b.Pictures, err = NewPictureStore(cfg, driver, pool, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	return b, nil
}

// Close drains pending events, then closes the publisher and the driver.
func (b *Backend) Close() error {
	b.Events.Close()
	return errors.Join(b.Publisher.Close(), b.Driver.Close())
}
