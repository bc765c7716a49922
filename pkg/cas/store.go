// Package cas is the content-addressed picture store. Uploads are keyed by
// the fingerprint of their canonical bytes and deduplicated by exact byte
// comparison, so equal content always resolves to one stable record.
package cas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/courier/pkg/eventstream"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
)

const (
	// DefaultLockTimeout bounds the wait for a digest lock.
	DefaultLockTimeout = 5 * time.Second

	// maxInsertAttempts caps the lookup/insert loop when inserts keep
	// losing uniqueness races to other processes.
	maxInsertAttempts = 3
)

// Enqueuer accepts events for asynchronous publishing.
// *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(event *eventstream.Event) bool
}

// Config is the configuration for a Store.
type Config struct {
	// Driver persists records. Required.
	Driver storage.PictureDriver

	// Codec canonicalizes raw uploads for Put. Defaults to a Codec with
	// picture.DefaultMaxPixels.
	Codec *picture.Codec

	// Fingerprint computes the lookup digest. Defaults to picture.Fingerprint.
	Fingerprint picture.Fingerprinter

	// MaxBytes caps canonical payloads. Defaults to picture.MaxBytes.
	MaxBytes int

	// LockTimeout bounds the wait for a digest lock. Defaults to
	// DefaultLockTimeout.
	LockTimeout time.Duration

	// Events receives picture.stored events. Optional.
	Events Enqueuer

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Store looks up or inserts pictures by content.
type Store struct {
	driver      storage.PictureDriver
	codec       *picture.Codec
	fingerprint picture.Fingerprinter
	maxBytes    int
	lockTimeout time.Duration
	events      Enqueuer
	logger      *slog.Logger
	locks       *stripedLocks
}

// NewStore creates a Store from c, filling defaults.
func NewStore(c Config) (*Store, error) {
	if c.Driver == nil {
		return nil, errors.New("picture store requires a driver")
	}

	s := &Store{
		driver:      c.Driver,
		codec:       c.Codec,
		fingerprint: c.Fingerprint,
		maxBytes:    c.MaxBytes,
		lockTimeout: c.LockTimeout,
		events:      c.Events,
		logger:      c.Logger,
		locks:       newStripedLocks(),
	}

	if s.codec == nil {
		s.codec = picture.NewCodec(picture.DefaultMaxPixels)
	}
	if s.fingerprint == nil {
		s.fingerprint = picture.Fingerprint
	}
	if s.maxBytes <= 0 {
		s.maxBytes = picture.MaxBytes
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	return s, nil
}

// Put canonicalizes raw and stores the result. The bool reports whether a new
// record was created.
func (s *Store) Put(ctx context.Context, raw []byte) (*picture.Record, bool, error) {
	data, err := s.codec.Canonicalize(raw)
	if err != nil {
		return nil, false, err
	}
	return s.LookupOrInsert(ctx, data)
}

// LookupOrInsert returns the record holding exactly data, creating it if
// none exists. The bool reports whether a new record was created.
//
// Records sharing a digest are told apart by comparing bytes, so a
// fingerprint collision never aliases two different payloads.
func (s *Store) LookupOrInsert(ctx context.Context, data []byte) (*picture.Record, bool, error) {
	if len(data) > s.maxBytes {
		return nil, false, fmt.Errorf("%w: %d bytes exceeds limit of %d", picture.ErrPayloadTooLarge, len(data), s.maxBytes)
	}

	digest := s.fingerprint(data)

	unlock, err := s.locks.lock(ctx, digest, s.lockTimeout)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", picture.ErrStoreUnavailable, err)
	}
	defer unlock()

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		existing, err := s.find(ctx, digest, data)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.logger.Debug("picture deduplicated", "id", existing.ID, "digest", digest)
			return existing, false, nil
		}

		rec := &picture.Record{
			ID:        uuid.NewString(),
			Digest:    digest,
			Checksum:  picture.Checksum(data),
			Data:      bytes.Clone(data),
			Size:      len(data),
			CreatedAt: time.Now().UTC(),
		}

		err = s.driver.InsertPicture(ctx, rec)
		if err == nil {
			s.logger.Debug("picture stored", "id", rec.ID, "digest", digest, "size", rec.Size)
			s.emitStored(rec)
			return rec, true, nil
		}

		if !errors.Is(err, storage.ErrConflict) {
			return nil, false, fmt.Errorf("%w: inserting picture: %w", picture.ErrStoreUnavailable, err)
		}

		s.logger.Debug("picture insert conflicted, retrying", "digest", digest, "attempt", attempt)
	}

	return nil, false, fmt.Errorf("%w: picture insert conflicted %d times", picture.ErrStoreUnavailable, maxInsertAttempts)
}

// find returns the stored record whose bytes equal data, or nil.
func (s *Store) find(ctx context.Context, digest string, data []byte) (*picture.Record, error) {
	candidates, err := s.driver.PicturesByDigest(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up digest: %w", picture.ErrStoreUnavailable, err)
	}

	for _, c := range candidates {
		if bytes.Equal(c.Data, data) {
			return c, nil
		}
	}
	return nil, nil
}

// Get retrieves a record by identity.
func (s *Store) Get(ctx context.Context, id string) (*picture.Record, error) {
	rec, err := s.driver.GetPicture(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: picture %s", picture.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", picture.ErrStoreUnavailable, err)
	}
	return rec, nil
}

func (s *Store) emitStored(rec *picture.Record) {
	if s.events == nil {
		return
	}

	s.events.Enqueue(eventstream.NewPictureStored(eventstream.PictureMeta{
		ID:       rec.ID,
		Digest:   rec.Digest,
		Checksum: rec.Checksum,
		Size:     rec.Size,
	}))
}
