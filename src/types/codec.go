package types

import (
	"fmt"

	json "github.com/goccy/go-json"
)

const classField = "__class__"

// marshalObject encodes v with the class discriminator and any extra fields
// that do not collide with v's own keys.
func marshalObject(kind Kind, v any, extra map[string]any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := doc[k]; ok {
			continue
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		doc[k] = b
	}
	doc[classField], _ = json.Marshal(string(kind))
	return json.Marshal(doc)
}

// NewObject returns an empty object of kind.
func NewObject(kind Kind) (Object, error) {
	switch kind {
	case KindState:
		return &State{}, nil
	case KindCity:
		return &City{}, nil
	case KindUser:
		return &User{}, nil
	case KindAmenity:
		return &Amenity{}, nil
	case KindPlace:
		return &Place{}, nil
	}
	return nil, fmt.Errorf("unknown class %q", kind)
}

// Decode rebuilds a typed object of kind from its JSON document.
func Decode(kind Kind, data []byte) (Object, error) {
	obj, err := NewObject(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return obj, nil
}

// DecodeClass rebuilds an object from a document carrying its own
// `__class__` field.
func DecodeClass(data []byte) (Object, error) {
	var head struct {
		Class string `json:"__class__"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	kind, err := ParseKind(head.Class)
	if err != nil {
		return nil, err
	}
	return Decode(kind, data)
}
