// Package inmemory provides a map-backed storage.Driver for tests and
// single-process deployments.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every map below
	mu sync.RWMutex

	// pictures is keyed by identity; byDigest indexes identities by digest
	// in insertion order.
	pictures map[string]*picture.Record
	byDigest map[string][]string

	users    map[string]*account.User
	sessions map[string]*account.Session

	dialogues map[string]*dialogue.Dialogue
	pairs     map[string]string
	messages  map[string][]*dialogue.Message
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		pictures:  make(map[string]*picture.Record),
		byDigest:  make(map[string][]string),
		users:     make(map[string]*account.User),
		sessions:  make(map[string]*account.Session),
		dialogues: make(map[string]*dialogue.Dialogue),
		pairs:     make(map[string]string),
		messages:  make(map[string][]*dialogue.Message),
	}
}

// PicturesByDigest returns the records sharing digest, oldest first.
func (s *Driver) PicturesByDigest(_ context.Context, digest string) ([]*picture.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDigest[digest]
	result := make([]*picture.Record, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.pictures[id])
	}
	return result, nil
}

// InsertPicture stores rec, enforcing (digest, checksum) uniqueness.
func (s *Driver) InsertPicture(_ context.Context, rec *picture.Record) error {
	if rec == nil {
		return errors.New("cannot store nil picture")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pictures[rec.ID]; ok {
		return storage.ErrConflict
	}
	for _, id := range s.byDigest[rec.Digest] {
		if s.pictures[id].Checksum == rec.Checksum {
			return storage.ErrConflict
		}
	}

	s.pictures[rec.ID] = rec
	s.byDigest[rec.Digest] = append(s.byDigest[rec.Digest], rec.ID)
	return nil
}

// GetPicture retrieves a record by identity.
func (s *Driver) GetPicture(_ context.Context, id string) (*picture.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.pictures[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "picture", ID: id}
	}
	return rec, nil
}

// CountPictures returns the number of stored pictures.
func (s *Driver) CountPictures(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pictures), nil
}

// CreateUser stores u unless the username is taken.
func (s *Driver) CreateUser(_ context.Context, u *account.User) error {
	if u == nil {
		return errors.New("cannot store nil user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return storage.ErrAlreadyExists
	}
	s.users[u.Username] = u
	return nil
}

// GetUser retrieves a user by username.
func (s *Driver) GetUser(_ context.Context, username string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, storage.NotFoundError{Kind: "user", ID: username}
	}
	return u, nil
}

// ListUsers returns all users ordered by username.
func (s *Driver) ListUsers(_ context.Context) ([]*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*account.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// CreateSession stores a login session.
func (s *Driver) CreateSession(_ context.Context, sess *account.Session) error {
	if sess == nil {
		return errors.New("cannot store nil session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Token] = sess
	return nil
}

// GetSession retrieves a session by token.
func (s *Driver) GetSession(_ context.Context, token string) (*account.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, storage.NotFoundError{Kind: "session"}
	}
	return sess, nil
}

// DeleteSession removes a session.
func (s *Driver) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// CreateDialogue stores d unless its member pair already has a dialogue.
func (s *Driver) CreateDialogue(_ context.Context, d *dialogue.Dialogue) error {
	if d == nil || len(d.Users) != 2 {
		return errors.New("dialogue must have exactly two users")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dialogue.PairKey(d.Users[0], d.Users[1])
	if _, ok := s.pairs[key]; ok {
		return storage.ErrAlreadyExists
	}

	s.dialogues[d.ID] = d
	s.pairs[key] = d.ID
	return nil
}

// GetDialogue retrieves a dialogue by id.
func (s *Driver) GetDialogue(_ context.Context, id string) (*dialogue.Dialogue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dialogues[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "dialogue", ID: id}
	}
	return copyDialogue(d), nil
}

// FindPairDialogue returns the dialogue between a and b.
func (s *Driver) FindPairDialogue(_ context.Context, a, b string) (*dialogue.Dialogue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[dialogue.PairKey(a, b)]
	if !ok {
		return nil, storage.NotFoundError{Kind: "dialogue"}
	}
	return copyDialogue(s.dialogues[id]), nil
}

// DialoguesByUser returns a page of the user's dialogues, most recently updated first.
func (s *Driver) DialoguesByUser(_ context.Context, username string, page storage.Page) ([]*dialogue.Dialogue, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*dialogue.Dialogue
	for _, d := range s.dialogues {
		if d.HasMember(username) {
			mine = append(mine, copyDialogue(d))
		}
	}

	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].UpdatedAt.Equal(mine[j].UpdatedAt) {
			return mine[i].UpdatedAt.After(mine[j].UpdatedAt)
		}
		return mine[i].ID < mine[j].ID
	})

	lo, hi := page.Window(len(mine))
	return mine[lo:hi], len(mine), nil
}

// CreateMessage stores m and bumps the dialogue's updated_at.
func (s *Driver) CreateMessage(_ context.Context, m *dialogue.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogues[m.DialogueID]
	if !ok {
		return storage.NotFoundError{Kind: "dialogue", ID: m.DialogueID}
	}

	s.messages[m.DialogueID] = append(s.messages[m.DialogueID], m)
	d.UpdatedAt = latest(d.UpdatedAt, m.CreatedAt)
	return nil
}

// MessagesByDialogue returns a page of messages, newest first.
func (s *Driver) MessagesByDialogue(_ context.Context, dialogueID string, page storage.Page) ([]*dialogue.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := slices.Clone(s.messages[dialogueID])
	slices.Reverse(msgs)

	lo, hi := page.Window(len(msgs))
	return msgs[lo:hi], len(msgs), nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func copyDialogue(d *dialogue.Dialogue) *dialogue.Dialogue {
	c := *d
	c.Users = slices.Clone(d.Users)
	return &c
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
