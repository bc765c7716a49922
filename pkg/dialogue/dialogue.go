// Package dialogue defines pair dialogues and the picture messages exchanged in them.
package dialogue

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrSelfDialogue is returned when both members of a pair are the same user.
var ErrSelfDialogue = errors.New("cannot open a dialogue with yourself")

// Dialogue is a conversation between users.
type Dialogue struct {
	ID        string    `json:"id"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPair returns a dialogue between two distinct users. Members are kept
// sorted so a pair has one canonical member list.
func NewPair(a, b string) (*Dialogue, error) {
	if a == b {
		return nil, ErrSelfDialogue
	}

	users := []string{a, b}
	slices.Sort(users)

	now := time.Now().UTC()
	return &Dialogue{
		ID:        uuid.NewString(),
		Users:     users,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasMember reports whether username takes part in the dialogue.
func (d *Dialogue) HasMember(username string) bool {
	return slices.Contains(d.Users, username)
}

// PairKey is the canonical identifier of the member pair. Usernames never
// contain "|", so the key is unambiguous.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Message is a picture sent into a dialogue.
type Message struct {
	ID         string    `json:"id"`
	DialogueID string    `json:"dialogue_id"`
	FromUser   string    `json:"from_user"`
	PictureID  string    `json:"picture_id"`
	IsEdited   bool      `json:"is_edited"`
	EditedAt   time.Time `json:"edited_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage creates a message from a user carrying a stored picture.
func NewMessage(dialogueID, from, pictureID string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:         uuid.NewString(),
		DialogueID: dialogueID,
		FromUser:   from,
		PictureID:  pictureID,
		EditedAt:   now,
		CreatedAt:  now,
	}
}
