package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested object is missing from storage.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidField indicates a request field could not be applied to an object.
	ErrInvalidField = errors.New("invalid field")
)

// Kind names a stored class, matching the `__class__` discriminator.
type Kind string

const (
	KindState   Kind = "State"
	KindCity    Kind = "City"
	KindUser    Kind = "User"
	KindAmenity Kind = "Amenity"
	KindPlace   Kind = "Place"
)

// Kinds lists every stored class in dependency order.
var Kinds = []Kind{KindState, KindCity, KindUser, KindAmenity, KindPlace}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown class %q", s)
}

// Object is implemented by every stored model.
type Object interface {
	Kind() Kind
	Base() *BaseModel
}

// Key returns the storage key of obj, e.g. "Place.<id>".
func Key(obj Object) string {
	return KeyOf(obj.Kind(), obj.Base().ID)
}

func KeyOf(kind Kind, id string) string {
	return string(kind) + "." + id
}

// Engine is the generic storage facade. New and Delete stage changes that
// are visible to later reads; Save persists everything staged so far.
type Engine interface {
	Get(ctx context.Context, kind Kind, id string) (Object, error)
	All(ctx context.Context, kind Kind) ([]Object, error)
	New(ctx context.Context, obj Object) error
	Delete(ctx context.Context, obj Object) error
	Save(ctx context.Context) error
	Close() error
}

// PlaceStore is the typed view of storage consumed by the place handlers.
type PlaceStore interface {
	State(ctx context.Context, id string) (*State, error)
	City(ctx context.Context, id string) (*City, error)
	User(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	Amenity(ctx context.Context, id string) (*Amenity, error)
	Place(ctx context.Context, id string) (*Place, error)
	Places(ctx context.Context) ([]*Place, error)
	CityPlaces(ctx context.Context, cityID string) ([]*Place, error)
	StateCities(ctx context.Context, stateID string) ([]*City, error)
	PlaceAmenities(ctx context.Context, placeID string) ([]*Amenity, error)

	New(ctx context.Context, obj Object) error
	Delete(ctx context.Context, obj Object) error
	Save(ctx context.Context) error
}

// AmenityLister resolves the amenity ids linked to a place.
type AmenityLister interface {
	PlaceAmenityIDs(ctx context.Context, placeID string) ([]string, error)
}
