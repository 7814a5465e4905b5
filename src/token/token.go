// Package token issues and checks the bearer tokens guarding place mutations.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	json "github.com/goccy/go-json"

	"hbnb/src/logger"
	"hbnb/src/types"
)

const defaultTTL = time.Hour

type ctxKey struct{}

// UserFinder looks users up by login email.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*types.User, error)
}

// Issuer signs HS256 tokens whose subject is a user id.
type Issuer struct {
	key   []byte
	ttl   time.Duration
	users UserFinder
	lggr  logger.Logger
	now   func() time.Time
}

func NewIssuer(signingKey string, users UserFinder, lggr logger.Logger) *Issuer {
	return &Issuer{
		key:   []byte(signingKey),
		ttl:   defaultTTL,
		users: users,
		lggr:  lggr.Named("token"),
		now:   time.Now,
	}
}

// Enabled reports whether a signing key is configured.
func (i *Issuer) Enabled() bool { return len(i.key) > 0 }

func (i *Issuer) Sign(userID string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": i.now().Add(i.ttl).Unix(),
	})
	return tok.SignedString(i.key)
}

// Verify returns the user id carried by a valid token.
func (i *Issuer) Verify(tokenString string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetToken exchanges an email and password for a signed token.
func (i *Issuer) GetToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" {
		writeError(w, http.StatusBadRequest, "Not a JSON")
		return
	}

	user, err := i.users.UserByEmail(r.Context(), creds.Email)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		i.lggr.Errorw("User lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil || !user.CheckPassword(creds.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	tokenString, err := i.Sign(user.ID)
	if err != nil {
		i.lggr.Errorw("Signing token failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

// Middleware rejects requests without a valid bearer token. With no signing
// key configured it passes every request through.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	if !i.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID, err := i.Verify(tokenString)
		if err != nil {
			i.lggr.Debugw("Rejected token", "err", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
