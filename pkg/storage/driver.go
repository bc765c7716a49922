// Package storage defines the persistence interfaces for pictures, users,
// sessions and dialogues, and the errors drivers report.
package storage

import (
	"context"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/picture"
)

// PictureDriver persists picture records. It does no deduplication itself:
// the content-addressed store decides when to insert.
type PictureDriver interface {
	// PicturesByDigest returns every record whose digest equals digest,
	// oldest first. It returns an empty slice when there are none.
	PicturesByDigest(ctx context.Context, digest string) ([]*picture.Record, error)

	// InsertPicture persists a new record. It returns ErrConflict if a record
	// with the same (digest, checksum) already exists.
	InsertPicture(ctx context.Context, rec *picture.Record) error

	// GetPicture retrieves a record by identity.
	GetPicture(ctx context.Context, id string) (*picture.Record, error)

	// CountPictures returns the number of stored records.
	CountPictures(ctx context.Context) (int, error)
}

// UserDriver persists registered users.
type UserDriver interface {
	// CreateUser returns ErrAlreadyExists if the username is taken.
	CreateUser(ctx context.Context, u *account.User) error
	GetUser(ctx context.Context, username string) (*account.User, error)

	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]*account.User, error)
}

// SessionDriver persists login sessions.
type SessionDriver interface {
	CreateSession(ctx context.Context, s *account.Session) error
	GetSession(ctx context.Context, token string) (*account.Session, error)

	// DeleteSession is a no-op for unknown tokens.
	DeleteSession(ctx context.Context, token string) error
}

// DialogueDriver persists dialogues and their messages.
type DialogueDriver interface {
	// CreateDialogue returns ErrAlreadyExists if the member pair already has a dialogue.
	CreateDialogue(ctx context.Context, d *dialogue.Dialogue) error
	GetDialogue(ctx context.Context, id string) (*dialogue.Dialogue, error)

	// FindPairDialogue returns the dialogue between a and b.
	FindPairDialogue(ctx context.Context, a, b string) (*dialogue.Dialogue, error)

	// DialoguesByUser returns a page of the user's dialogues, most recently
	// updated first, and the total count.
	DialoguesByUser(ctx context.Context, username string, page Page) ([]*dialogue.Dialogue, int, error)

	// CreateMessage stores m and bumps its dialogue's updated_at.
	CreateMessage(ctx context.Context, m *dialogue.Message) error

	// MessagesByDialogue returns a page of messages, newest first, and the total count.
	MessagesByDialogue(ctx context.Context, dialogueID string, page Page) ([]*dialogue.Message, int, error)
}

// Driver is the full persistence backend used by the API server.
type Driver interface {
	PictureDriver
	UserDriver
	SessionDriver
	DialogueDriver

	// Close closes the store and releases any resources.
	Close() error
}

// Page selects a window of an ordered listing.
type Page struct {
	Limit  int
	Offset int
}

// Window applies the page to a slice length and returns the [lo, hi) bounds.
func (p Page) Window(n int) (int, int) {
	lo := min(max(p.Offset, 0), n)
	hi := n
	if p.Limit > 0 {
		hi = min(lo+p.Limit, n)
	}
	return lo, hi
}
