package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hbnb/src/types"
)

// Repository is the typed view over an Engine. Lists are ordered by
// creation time, then id.
type Repository struct {
	engine types.Engine
}

func NewRepository(engine types.Engine) *Repository {
	return &Repository{engine: engine}
}

func (r *Repository) Engine() types.Engine { return r.engine }

func get[T types.Object](ctx context.Context, e types.Engine, kind types.Kind, id string) (T, error) {
	var zero T
	obj, err := e.Get(ctx, kind, id)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected type %T", types.KeyOf(kind, id), obj)
	}
	return typed, nil
}

func all[T types.Object](ctx context.Context, e types.Engine, kind types.Kind, keep func(T) bool) ([]T, error) {
	objs, err := e.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(objs))
	for _, obj := range objs {
		typed, ok := obj.(T)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected type %T", types.Key(obj), obj)
		}
		if keep == nil || keep(typed) {
			out = append(out, typed)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Base(), out[j].Base()
		if !a.CreatedAt.Equal(b.CreatedAt.Time) {
			return a.CreatedAt.Before(b.CreatedAt.Time)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *Repository) State(ctx context.Context, id string) (*types.State, error) {
	return get[*types.State](ctx, r.engine, types.KindState, id)
}

func (r *Repository) City(ctx context.Context, id string) (*types.City, error) {
	return get[*types.City](ctx, r.engine, types.KindCity, id)
}

func (r *Repository) User(ctx context.Context, id string) (*types.User, error) {
	return get[*types.User](ctx, r.engine, types.KindUser, id)
}

// UserByEmail matches email case-insensitively.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	users, err := all(ctx, r.engine, types.KindUser, func(u *types.User) bool {
		return strings.EqualFold(u.Email, email)
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, types.ErrNotFound
	}
	return users[0], nil
}

func (r *Repository) Amenity(ctx context.Context, id string) (*types.Amenity, error) {
	return get[*types.Amenity](ctx, r.engine, types.KindAmenity, id)
}

func (r *Repository) Place(ctx context.Context, id string) (*types.Place, error) {
	return get[*types.Place](ctx, r.engine, types.KindPlace, id)
}

func (r *Repository) Places(ctx context.Context) ([]*types.Place, error) {
	return all[*types.Place](ctx, r.engine, types.KindPlace, nil)
}

func (r *Repository) CityPlaces(ctx context.Context, cityID string) ([]*types.Place, error) {
	return all(ctx, r.engine, types.KindPlace, func(p *types.Place) bool {
		return p.CityID == cityID
	})
}

func (r *Repository) StateCities(ctx context.Context, stateID string) ([]*types.City, error) {
	return all(ctx, r.engine, types.KindCity, func(c *types.City) bool {
		return c.StateID == stateID
	})
}

// PlaceAmenities returns the amenities linked to a place, skipping ids that
// no longer resolve.
func (r *Repository) PlaceAmenities(ctx context.Context, placeID string) ([]*types.Amenity, error) {
	place, err := r.Place(ctx, placeID)
	if err != nil {
		return nil, err
	}
	return all(ctx, r.engine, types.KindAmenity, func(a *types.Amenity) bool {
		return place.HasAmenity(a.ID)
	})
}

func (r *Repository) New(ctx context.Context, obj types.Object) error {
	return r.engine.New(ctx, obj)
}

func (r *Repository) Delete(ctx context.Context, obj types.Object) error {
	return r.engine.Delete(ctx, obj)
}

func (r *Repository) Save(ctx context.Context) error {
	return r.engine.Save(ctx)
}

var _ types.PlaceStore = (*Repository)(nil)
