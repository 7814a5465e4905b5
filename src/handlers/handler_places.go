package handlers

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"hbnb/src/events"
	"hbnb/src/logger"
	"hbnb/src/token"
	"hbnb/src/types"
)

// Handler serves the place resource.
type Handler struct {
	store     types.PlaceStore
	amenities types.AmenityLister
	events    events.Publisher
	lggr      logger.Logger

	publishTimeout time.Duration
}

const defaultPublishTimeout = 2 * time.Second

func New(store types.PlaceStore, amenities types.AmenityLister, pub events.Publisher, lggr logger.Logger) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{
		store:     store,
		amenities: amenities,
		events:    pub,
		lggr:      lggr.Named("places"),

		publishTimeout: defaultPublishTimeout,
	}
}

// WithPublishTimeout bounds how long a mutation waits on its event.
func (h *Handler) WithPublishTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.publishTimeout = d
	}
	return h
}

// createIgnored are body keys a new place never takes from the request.
var createIgnored = []string{"id", "created_at", "updated_at", "city_id", "__class__"}

func (h *Handler) HandleGetCityPlaces(w http.ResponseWriter, r *http.Request) {
	city, err := h.store.City(r.Context(), r.PathValue("city_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	places, err := h.store.CityPlaces(r.Context(), city.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, places)
}

func (h *Handler) HandleGetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := h.store.Place(r.Context(), r.PathValue("place_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (h *Handler) HandleDeletePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	place, err := h.store.Place(ctx, r.PathValue("place_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Delete(ctx, place); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Save(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r, events.PlaceDeleted, place)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) HandleCreatePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	city, err := h.store.City(ctx, r.PathValue("city_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body, ok := decodeObject(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return
	}
	rawUserID, ok := body["user_id"]
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing user_id")
		return
	}
	var userID string
	if err := json.Unmarshal(rawUserID, &userID); err != nil {
		h.fail(w, r, types.ErrNotFound)
		return
	}
	if _, err := h.store.User(ctx, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, ok := body["name"]; !ok {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}

	for _, k := range createIgnored {
		delete(body, k)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	place := &types.Place{}
	if err := json.Unmarshal(raw, place); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrInvalidField.Error()+": "+err.Error())
		return
	}
	place.BaseModel = types.NewBase()
	place.CityID = city.ID

	if err := h.store.New(ctx, place); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Save(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r, events.PlaceCreated, place)
	writeJSON(w, http.StatusCreated, place)
}

func (h *Handler) HandleUpdatePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	place, err := h.store.Place(ctx, r.PathValue("place_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	patch, ok := decodeObject(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return
	}
	if err := place.Apply(patch); err != nil {
		h.fail(w, r, err)
		return
	}
	place.Touch()

	if err := h.store.New(ctx, place); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Save(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r, events.PlaceUpdated, place)
	writeJSON(w, http.StatusOK, place)
}

func (h *Handler) HandleGetPlaceAmenities(w http.ResponseWriter, r *http.Request) {
	amenities, err := h.store.PlaceAmenities(r.Context(), r.PathValue("place_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amenities)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// publish reports a committed change. Delivery failures are logged only.
func (h *Handler) publish(r *http.Request, typ string, place *types.Place) {
	actor, _ := token.UserID(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), h.publishTimeout)
	defer cancel()
	if err := h.events.Publish(ctx, events.NewPlaceEvent(typ, place)); err != nil {
		h.lggr.Warnw("Publishing place event failed", "type", typ, "place_id", place.ID, "err", err)
		return
	}
	h.lggr.Debugw("Place changed", "type", typ, "place_id", place.ID, "actor", actor)
}
