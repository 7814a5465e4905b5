package types

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Place is a rentable location owned by a user and located in a city.
// Keys outside the known attribute set are kept in Extra and re-emitted
// on encode.
type Place struct {
	BaseModel
	CityID          string   `json:"city_id"`
	UserID          string   `json:"user_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	NumberRooms     int      `json:"number_rooms"`
	NumberBathrooms int      `json:"number_bathrooms"`
	MaxGuest        int      `json:"max_guest"`
	PriceByNight    int      `json:"price_by_night"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	AmenityIDs      []string `json:"amenity_ids"`

	Extra map[string]any `json:"-"`
}

var placeFields = map[string]bool{
	"id": true, "created_at": true, "updated_at": true,
	"city_id": true, "user_id": true, "name": true, "description": true,
	"number_rooms": true, "number_bathrooms": true, "max_guest": true,
	"price_by_night": true, "latitude": true, "longitude": true,
	"amenity_ids": true, classField: true,
}

// placeImmutable lists the keys an update may never overwrite.
var placeImmutable = map[string]bool{
	"id":         true,
	"user_id":    true,
	"city_id":    true,
	"created_at": true,
	"updated_at": true,
	classField:   true,
}

func (*Place) Kind() Kind { return KindPlace }

func (p *Place) MarshalJSON() ([]byte, error) {
	type alias Place
	a := (*alias)(p)
	if a.AmenityIDs == nil {
		cp := *a
		cp.AmenityIDs = []string{}
		a = &cp
	}
	return marshalObject(KindPlace, a, p.Extra)
}

func (p *Place) UnmarshalJSON(data []byte) error {
	type alias Place
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var extra map[string]any
	for k, raw := range doc {
		if placeFields[k] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	*p = Place(a)
	p.Extra = extra
	return nil
}

// HasAmenity reports whether id is linked to p.
func (p *Place) HasAmenity(id string) bool {
	for _, a := range p.AmenityIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Apply copies every key of patch onto p except id, owner, city and
// timestamps. A value of the wrong type for a known attribute yields
// ErrInvalidField and leaves p untouched.
func (p *Place) Apply(patch map[string]json.RawMessage) error {
	current, err := json.Marshal(p)
	if err != nil {
		return err
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &doc); err != nil {
		return err
	}
	for k, v := range patch {
		if placeImmutable[k] {
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var next Place
	if err := json.Unmarshal(merged, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	*p = next
	return nil
}
