package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"hbnb/src/types"
)

type searchFilter struct {
	States    []string `json:"states"`
	Cities    []string `json:"cities"`
	Amenities []string `json:"amenities"`
}

func (f searchFilter) empty() bool {
	return len(f.States) == 0 && len(f.Cities) == 0 && len(f.Amenities) == 0
}

func (h *Handler) HandleSearchPlaces(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return
	}
	filter, ok := parseFilter(body)
	if !ok {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return
	}

	places, err := h.searchPlaces(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, places)
}

// parseFilter accepts a filter object, or an empty array meaning no filters.
func parseFilter(body []byte) (searchFilter, bool) {
	var filter *searchFilter
	if err := json.Unmarshal(body, &filter); err == nil && filter != nil {
		return *filter, true
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil && len(list) == 0 && bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		return searchFilter{}, true
	}
	return searchFilter{}, false
}

// searchPlaces collects the places of the listed states and cities, or
// every place when neither yields any, then keeps those offering every
// listed amenity. Unknown state and city ids contribute nothing.
func (h *Handler) searchPlaces(ctx context.Context, f searchFilter) ([]*types.Place, error) {
	if f.empty() {
		return h.store.Places(ctx)
	}

	var places []*types.Place
	seen := make(map[string]bool)
	add := func(batch []*types.Place) {
		for _, p := range batch {
			if !seen[p.ID] {
				seen[p.ID] = true
				places = append(places, p)
			}
		}
	}

	for _, stateID := range f.States {
		cities, err := h.store.StateCities(ctx, stateID)
		if err != nil {
			return nil, err
		}
		for _, city := range cities {
			batch, err := h.store.CityPlaces(ctx, city.ID)
			if err != nil {
				return nil, err
			}
			add(batch)
		}
	}
	for _, cityID := range f.Cities {
		batch, err := h.store.CityPlaces(ctx, cityID)
		if err != nil {
			return nil, err
		}
		add(batch)
	}

	if len(places) == 0 {
		all, err := h.store.Places(ctx)
		if err != nil {
			return nil, err
		}
		places = all
	}
	if len(f.Amenities) == 0 {
		return places, nil
	}

	kept := make([]*types.Place, 0, len(places))
	for _, p := range places {
		ids, err := h.amenities.PlaceAmenityIDs(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("amenities of place %s: %w", p.ID, err)
		}
		if containsAll(ids, f.Amenities) {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, id := range have {
		set[id] = true
	}
	for _, id := range want {
		if !set[id] {
			return false
		}
	}
	return true
}
