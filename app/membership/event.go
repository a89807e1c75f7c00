package membership

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/joefazee/categorias/internal/validator"
	"github.com/joefazee/categorias/models"
)

// EventType names a change on the content side that the category core must see.
type EventType string

const (
	EventPostAttached EventType = "post.attached"
	EventPostDetached EventType = "post.detached"
	EventPostSaved    EventType = "post.saved"
	EventPostDeleted  EventType = "post.deleted"
)

var ErrMalformedEvent = errors.New("membership: malformed event")

// Event is the wire format published on the membership channel.
type Event struct {
	ID         uuid.UUID    `json:"id"`
	Type       EventType    `json:"type"`
	PostID     int64        `json:"post_id,omitempty"`
	CategoryID int64        `json:"categoria_id,omitempty"`
	Post       *models.Post `json:"post,omitempty"`
}

func PostAttached(postID, categoryID int64) Event {
	return Event{ID: uuid.New(), Type: EventPostAttached, PostID: postID, CategoryID: categoryID}
}

func PostDetached(postID, categoryID int64) Event {
	return Event{ID: uuid.New(), Type: EventPostDetached, PostID: postID, CategoryID: categoryID}
}

func PostSaved(post *models.Post) Event {
	return Event{ID: uuid.New(), Type: EventPostSaved, Post: post}
}

func PostDeleted(postID int64) Event {
	return Event{ID: uuid.New(), Type: EventPostDeleted, PostID: postID}
}

// Validate checks the fields each event type needs. The ids themselves are
// range-checked again by the hooks.
func (e *Event) Validate() error {
	v := validator.New()
	v.Check(e.ID != uuid.Nil, "id", "must be provided")
	v.Check(validator.In(string(e.Type),
		string(EventPostAttached), string(EventPostDetached),
		string(EventPostSaved), string(EventPostDeleted)), "type", "unknown event type")

	switch e.Type {
	case EventPostAttached, EventPostDetached:
		v.Check(e.PostID != 0, "post_id", "must be provided")
		v.Check(e.CategoryID != 0, "categoria_id", "must be provided")
	case EventPostSaved:
		v.Check(e.Post != nil, "post", "must be provided")
	case EventPostDeleted:
		v.Check(e.PostID != 0, "post_id", "must be provided")
	}

	if !v.Valid() {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, v.Errors)
	}
	return nil
}

func (e *Event) claimKey() string {
	return claimPrefix + e.ID.String()
}

// Decode parses and validates a channel payload.
func Decode(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
