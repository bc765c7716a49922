package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePictureStored is emitted after a new picture record is created.
	// Deduplicated uploads do not emit it.
	EventTypePictureStored = "courier.picture.stored"

	// EventTypeMessageSent is emitted after a message is added to a dialogue.
	EventTypeMessageSent = "courier.message.sent"
)

// Event is a transport-neutral event payload. Exactly one of Picture and
// Message is set, matching EventType.
type Event struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Picture       *PictureMeta `json:"picture,omitempty"`
	Message       *MessageMeta `json:"message,omitempty"`
}

// PictureMeta describes a stored picture. It never carries the bytes.
type PictureMeta struct {
	ID       string `json:"id"`
	Digest   string `json:"digest"`
	Checksum string `json:"checksum"`
	Size     int    `json:"size"`
}

// MessageMeta describes a message sent into a dialogue.
type MessageMeta struct {
	ID         string   `json:"id"`
	DialogueID string   `json:"dialogue_id"`
	FromUser   string   `json:"from_user"`
	Recipients []string `json:"recipients"`
	PictureID  string   `json:"picture_id"`
}

// Key returns the partitioning key for the event: the picture digest or the
// dialogue id, so related events keep their order within a partition.
func (e *Event) Key() string {
	switch {
	case e.Picture != nil:
		return e.Picture.Digest
	case e.Message != nil:
		return e.Message.DialogueID
	default:
		return e.EventID
	}
}

// NewPictureStored builds a picture.stored event.
func NewPictureStored(meta PictureMeta) *Event {
	return newEvent(EventTypePictureStored, func(e *Event) { e.Picture = &meta })
}

// NewMessageSent builds a message.sent event.
func NewMessageSent(meta MessageMeta) *Event {
	return newEvent(EventTypeMessageSent, func(e *Event) { e.Message = &meta })
}

func newEvent(eventType string, set func(*Event)) *Event {
	e := &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
	}
	set(e)
	return e
}
