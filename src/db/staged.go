package db

import (
	"sync"

	json "github.com/goccy/go-json"

	"hbnb/src/types"
)

// change is one staged write; obj is nil for a delete.
type change struct {
	kind types.Kind
	id   string
	obj  types.Object
}

// staged holds writes made through New/Delete until the next Save.
type staged struct {
	mu      sync.Mutex
	order   []string
	changes map[string]change
}

func (s *staged) put(obj types.Object) error {
	cp, err := clone(obj)
	if err != nil {
		return err
	}
	s.record(change{kind: obj.Kind(), id: obj.Base().ID, obj: cp})
	return nil
}

func (s *staged) remove(obj types.Object) {
	s.record(change{kind: obj.Kind(), id: obj.Base().ID})
}

func (s *staged) record(c change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.changes == nil {
		s.changes = make(map[string]change)
	}
	key := types.KeyOf(c.kind, c.id)
	if _, ok := s.changes[key]; !ok {
		s.order = append(s.order, key)
	}
	s.changes[key] = c
}

// lookup returns the staged state of kind/id. ok is false when nothing is
// staged; a staged delete returns ok with a nil object.
func (s *staged) lookup(kind types.Kind, id string) (obj types.Object, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.changes[types.KeyOf(kind, id)]
	if !ok || c.obj == nil {
		return nil, ok
	}
	cp, err := clone(c.obj)
	if err != nil {
		return nil, false
	}
	return cp, true
}

// overlay applies staged writes of kind on top of persisted objects.
func (s *staged) overlay(kind types.Kind, persisted []types.Object) []types.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Object, 0, len(persisted))
	for _, obj := range persisted {
		if _, ok := s.changes[types.Key(obj)]; ok {
			continue
		}
		out = append(out, obj)
	}
	for _, key := range s.order {
		c := s.changes[key]
		if c.kind != kind || c.obj == nil {
			continue
		}
		if cp, err := clone(c.obj); err == nil {
			out = append(out, cp)
		}
	}
	return out
}

// snapshot returns staged writes in staging order without clearing them.
func (s *staged) snapshot() []change {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]change, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.changes[key])
	}
	return out
}

// clear drops flushed writes unless they were restaged in the meantime.
func (s *staged) clear(flushed []change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range flushed {
		key := types.KeyOf(c.kind, c.id)
		if cur, ok := s.changes[key]; ok && cur.obj == c.obj {
			delete(s.changes, key)
		}
	}
	order := s.order[:0]
	for _, key := range s.order {
		if _, ok := s.changes[key]; ok {
			order = append(order, key)
		}
	}
	s.order = order
}

// clone deep-copies obj through its document form.
func clone(obj types.Object) (types.Object, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return types.Decode(obj.Kind(), raw)
}
