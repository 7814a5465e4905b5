package token_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hbnb/src/db"
	"hbnb/src/logger"
	"hbnb/src/token"
	"hbnb/src/types"
)

func newIssuer(t *testing.T, key string) (*token.Issuer, *types.User) {
	t.Helper()
	ctx := context.Background()
	repo := db.NewRepository(db.NewMemory())
	user := &types.User{BaseModel: types.NewBase(), Email: "betty@hbnb.io"}
	require.NoError(t, user.SetPassword("pwd"))
	require.NoError(t, repo.New(ctx, user))
	return token.NewIssuer(key, repo, logger.Test(t)), user
}

func TestGetToken(t *testing.T) {
	issuer, user := newIssuer(t, "secret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"email":"betty@hbnb.io","password":"pwd"}`))
	issuer.GetToken(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	sub, err := issuer.Verify(body["token"])
	require.NoError(t, err)
	assert.Equal(t, user.ID, sub)
}

func TestGetTokenRejectsBadCredentials(t *testing.T) {
	issuer, _ := newIssuer(t, "secret")

	cases := map[string]struct {
		body string
		code int
	}{
		"wrong password": {`{"email":"betty@hbnb.io","password":"nope"}`, http.StatusUnauthorized},
		"unknown email":  {`{"email":"who@hbnb.io","password":"pwd"}`, http.StatusUnauthorized},
		"not json":       {`email=betty`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			issuer.GetToken(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(tc.body)))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestMiddleware(t *testing.T) {
	issuer, user := newIssuer(t, "secret")
	var seen string
	h := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = token.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/places/p1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/places/p1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signed, err := issuer.Sign(user.ID)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/places/p1", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user.ID, seen)
}

func TestMiddlewareDisabledWithoutKey(t *testing.T) {
	issuer, _ := newIssuer(t, "")
	assert.False(t, issuer.Enabled())

	h := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/places/p1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVerifyRejectsOtherKey(t *testing.T) {
	a, user := newIssuer(t, "one")
	b, _ := newIssuer(t, "two")

	signed, err := a.Sign(user.ID)
	require.NoError(t, err)
	_, err = b.Verify(signed)
	require.Error(t, err)
}
