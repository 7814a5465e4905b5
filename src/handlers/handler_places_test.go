package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hbnb/src/amenities"
	"hbnb/src/db"
	"hbnb/src/events"
	"hbnb/src/handlers"
	"hbnb/src/logger"
	"hbnb/src/token"
	"hbnb/src/types"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	repo   *db.Repository
	srv    *httptest.Server
	pub    *recordingPublisher
	lookup *amenities.Client
}

var epoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func base(id string, offset int) types.BaseModel {
	ts := types.Timestamp{Time: epoch.Add(time.Duration(offset) * time.Second)}
	return types.BaseModel{ID: id, CreatedAt: ts, UpdatedAt: ts}
}

// newFixture seeds two states:
//
//	s1: c1 (p1: a1,a2), c2 (p2: a1)
//	s2: c3 (p3)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := db.NewRepository(db.NewMemory())

	objs := []types.Object{
		&types.State{BaseModel: base("s1", 0), Name: "California"},
		&types.State{BaseModel: base("s2", 1), Name: "Nevada"},
		&types.City{BaseModel: base("c1", 2), StateID: "s1", Name: "San Francisco"},
		&types.City{BaseModel: base("c2", 3), StateID: "s1", Name: "Napa"},
		&types.City{BaseModel: base("c3", 4), StateID: "s2", Name: "Reno"},
		&types.User{BaseModel: base("u1", 5), Email: "betty@hbnb.io"},
		&types.Amenity{BaseModel: base("a1", 6), Name: "Wifi"},
		&types.Amenity{BaseModel: base("a2", 7), Name: "Pool"},
		&types.Place{BaseModel: base("p1", 8), CityID: "c1", UserID: "u1", Name: "Loft", AmenityIDs: []string{"a1", "a2"}},
		&types.Place{BaseModel: base("p2", 9), CityID: "c2", UserID: "u1", Name: "Barn", AmenityIDs: []string{"a1"}},
		&types.Place{BaseModel: base("p3", 10), CityID: "c3", UserID: "u1", Name: "Cabin"},
	}
	for _, obj := range objs {
		require.NoError(t, repo.New(ctx, obj))
	}
	require.NoError(t, repo.Save(ctx))

	lggr := logger.Test(t)
	lookup := &amenities.Client{HTTP: http.DefaultClient}
	pub := &recordingPublisher{}
	h := handlers.New(repo, lookup, pub, lggr)
	srv := httptest.NewServer(handlers.NewRouter(h, token.NewIssuer("", repo, lggr), lggr))
	t.Cleanup(srv.Close)
	lookup.Base = srv.URL + "/api/v1"

	return &fixture{repo: repo, srv: srv, pub: pub, lookup: lookup}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+"/api/v1"+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decodeList(t *testing.T, raw []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func decodeMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func ids(list []map[string]any) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m["id"].(string))
	}
	return out
}

func TestGetCityPlaces(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/cities/c1/places", "")
	require.Equal(t, http.StatusOK, code)
	list := decodeList(t, body)
	assert.Equal(t, []string{"p1"}, ids(list))
	assert.Equal(t, "Place", list[0]["__class__"])

	code, body = f.do(t, http.MethodGet, "/cities/c1/places/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeList(t, body), 1)
}

func TestGetCityPlacesMissingCity(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/cities/nope/places", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", decodeMap(t, body)["error"])
}

func TestGetPlace(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/places/p2", "")
	require.Equal(t, http.StatusOK, code)
	place := decodeMap(t, body)
	assert.Equal(t, "Barn", place["name"])
	assert.Equal(t, "2026-03-01T12:00:09.000000", place["created_at"])

	code, _ = f.do(t, http.MethodGet, "/places/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeletePlace(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodDelete, "/places/p3", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeMap(t, body))

	_, err := f.repo.Place(context.Background(), "p3")
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, []string{events.PlaceDeleted}, f.pub.kinds())

	code, _ = f.do(t, http.MethodDelete, "/places/p3", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreatePlace(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/cities/c2/places",
		`{"user_id":"u1","name":"Treehouse","number_rooms":2,"id":"forced","city_id":"c3","view":"valley"}`)
	require.Equal(t, http.StatusCreated, code)

	created := decodeMap(t, body)
	assert.Equal(t, "Treehouse", created["name"])
	assert.Equal(t, "c2", created["city_id"])
	assert.Equal(t, "u1", created["user_id"])
	assert.Equal(t, float64(2), created["number_rooms"])
	assert.Equal(t, "valley", created["view"])
	assert.NotEqual(t, "forced", created["id"])

	stored, err := f.repo.Place(context.Background(), created["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Treehouse", stored.Name)
	assert.Equal(t, []string{events.PlaceCreated}, f.pub.kinds())
}

func TestCreatePlaceValidation(t *testing.T) {
	cases := map[string]struct {
		city string
		body string
		code int
		msg  string
	}{
		"missing city":      {"nope", `{"user_id":"u1","name":"x"}`, http.StatusNotFound, "Not found"},
		"not json":          {"c1", `user_id=u1`, http.StatusBadRequest, "Not a JSON"},
		"empty object":      {"c1", `{}`, http.StatusBadRequest, "Not a JSON"},
		"json array":        {"c1", `["user_id"]`, http.StatusBadRequest, "Not a JSON"},
		"missing user_id":   {"c1", `{"name":"x"}`, http.StatusBadRequest, "Missing user_id"},
		"unknown user":      {"c1", `{"user_id":"ghost","name":"x"}`, http.StatusNotFound, "Not found"},
		"missing name":      {"c1", `{"user_id":"u1"}`, http.StatusBadRequest, "Missing name"},
		"user before name":  {"c1", `{"user_id":"ghost"}`, http.StatusNotFound, "Not found"},
		"non-string userid": {"c1", `{"user_id":7,"name":"x"}`, http.StatusNotFound, "Not found"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			code, body := f.do(t, http.MethodPost, "/cities/"+tc.city+"/places", tc.body)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.msg, decodeMap(t, body)["error"])
			assert.Empty(t, f.pub.kinds())
		})
	}
}

func TestUpdatePlace(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPut, "/places/p1",
		`{"name":"Penthouse","description":"top floor","id":"x","user_id":"intruder","city_id":"c3","created_at":"2001-01-01T00:00:00.000000","updated_at":"2001-01-01T00:00:00.000000","parking":true}`)
	require.Equal(t, http.StatusOK, code)

	updated := decodeMap(t, body)
	assert.Equal(t, "p1", updated["id"])
	assert.Equal(t, "u1", updated["user_id"])
	assert.Equal(t, "c1", updated["city_id"])
	assert.Equal(t, "2026-03-01T12:00:08.000000", updated["created_at"])
	assert.NotEqual(t, "2001-01-01T00:00:00.000000", updated["updated_at"])
	assert.Equal(t, "Penthouse", updated["name"])
	assert.Equal(t, true, updated["parking"])

	stored, err := f.repo.Place(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "top floor", stored.Description)
	assert.Equal(t, []string{"a1", "a2"}, stored.AmenityIDs)
	assert.Equal(t, []string{events.PlaceUpdated}, f.pub.kinds())
}

func TestUpdatePlaceErrors(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPut, "/places/nope", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body := f.do(t, http.MethodPut, "/places/p1", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Not a JSON", decodeMap(t, body)["error"])

	code, _ = f.do(t, http.MethodPut, "/places/p1", `{"max_guest":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetPlaceAmenities(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/places/p1/amenities", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"a1", "a2"}, ids(decodeList(t, body)))

	code, _ = f.do(t, http.MethodGet, "/places/nope/amenities", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatusAndUnknownRoute(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", decodeMap(t, body)["status"])

	code, body = f.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", decodeMap(t, body)["error"])
}

func TestMutationsRequireTokenWhenKeyConfigured(t *testing.T) {
	ctx := context.Background()
	repo := db.NewRepository(db.NewMemory())
	user := &types.User{BaseModel: base("u1", 0), Email: "betty@hbnb.io"}
	require.NoError(t, user.SetPassword("pwd"))
	require.NoError(t, repo.New(ctx, user))
	require.NoError(t, repo.New(ctx, &types.Place{BaseModel: base("p1", 1), UserID: "u1", Name: "Loft"}))

	lggr := logger.Test(t)
	issuer := token.NewIssuer("secret", repo, lggr)
	h := handlers.New(repo, amenities.StorageLister{Store: repo}, nil, lggr)
	srv := httptest.NewServer(handlers.NewRouter(h, issuer, lggr))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/places/p1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/auth/token", "application/json", strings.NewReader(`{"email":"betty@hbnb.io","password":"pwd"}`))
	require.NoError(t, err)
	var tok map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/places/p1", nil)
	req.Header.Set("Authorization", "Bearer "+tok["token"])
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// reads stay public
	resp, err = http.Get(srv.URL + "/api/v1/places/p1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// stalledPublisher blocks until the publish context ends, like a writer
// stuck on an unreachable broker.
type stalledPublisher struct {
	deadline chan bool
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	_, ok := ctx.Deadline()
	p.deadline <- ok
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func TestMutationDoesNotWaitOnStalledPublisher(t *testing.T) {
	ctx := context.Background()
	repo := db.NewRepository(db.NewMemory())
	require.NoError(t, repo.New(ctx, &types.City{BaseModel: base("c1", 0), StateID: "s1", Name: "Napa"}))
	require.NoError(t, repo.New(ctx, &types.User{BaseModel: base("u1", 1), Email: "betty@hbnb.io"}))
	require.NoError(t, repo.Save(ctx))

	lggr := logger.Test(t)
	pub := &stalledPublisher{deadline: make(chan bool, 1)}
	h := handlers.New(repo, amenities.StorageLister{Store: repo}, pub, lggr).WithPublishTimeout(50 * time.Millisecond)
	srv := httptest.NewServer(handlers.NewRouter(h, token.NewIssuer("", repo, lggr), lggr))
	defer srv.Close()

	start := time.Now()
	resp, err := http.Post(srv.URL+"/api/v1/cities/c1/places", "application/json", strings.NewReader(`{"user_id":"u1","name":"Barn"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, <-pub.deadline, "publish context has no deadline")

	places, err := repo.CityPlaces(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, places, 1)
}
