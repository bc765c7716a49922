package picture

import "errors"

var (
	// ErrNotAnImage is returned when raw bytes cannot be decoded as a supported image.
	ErrNotAnImage = errors.New("not an image")

	// ErrPayloadTooLarge is returned when canonical bytes exceed the size cap.
	ErrPayloadTooLarge = errors.New("picture payload too large")

	// ErrStoreUnavailable is returned when the backing store fails or the
	// per-digest critical section could not be entered in time. Callers may retry.
	ErrStoreUnavailable = errors.New("picture store unavailable")

	// ErrNotFound is returned when no record exists for an identity.
	ErrNotFound = errors.New("picture not found")
)
