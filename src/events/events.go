// Package events publishes place lifecycle notifications.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hbnb/src/types"
)

const (
	PlaceCreated = "place.created"
	PlaceUpdated = "place.updated"
	PlaceDeleted = "place.deleted"
)

type Event struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	PlaceID    string       `json:"place_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Place      *types.Place `json:"place,omitempty"`
}

// NewPlaceEvent builds an event of typ for p. Deleted places carry no body.
func NewPlaceEvent(typ string, p *types.Place) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		PlaceID:    p.ID,
		OccurredAt: time.Now().UTC(),
	}
	if typ != PlaceDeleted {
		ev.Place = p
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
