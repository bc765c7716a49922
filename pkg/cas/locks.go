package cas

import (
	"context"
	"errors"
	"hash/maphash"
	"time"
)

// numStripes is the number of lock stripes digests are spread over.
const numStripes = 256

// errLockTimeout is returned when a stripe could not be acquired in time.
var errLockTimeout = errors.New("timed out waiting for digest lock")

// stripedLocks serializes work per digest without a global lock. Digests that
// hash to the same stripe share a lock, which is safe, only less parallel.
type stripedLocks struct {
	seed    maphash.Seed
	stripes [numStripes]chan struct{}
}

func newStripedLocks() *stripedLocks {
	l := &stripedLocks{seed: maphash.MakeSeed()}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *stripedLocks) stripe(digest string) chan struct{} {
	return l.stripes[maphash.String(l.seed, digest)%numStripes]
}

// lock acquires the stripe for digest, waiting at most timeout and never past
// ctx. The returned func releases it.
func (l *stripedLocks) lock(ctx context.Context, digest string, timeout time.Duration) (func(), error) {
	s := l.stripe(digest)

	// Fast path.
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, errLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
