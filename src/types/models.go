package types

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TimeLayout is the wire format of created_at/updated_at.
const TimeLayout = "2006-01-02T15:04:05.000000"

type Timestamp struct {
	time.Time
}

// Now returns the current UTC time at the precision of TimeLayout.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimeLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}

type BaseModel struct {
	ID        string    `json:"id"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// NewBase returns a BaseModel with a fresh id and both timestamps set to now.
func NewBase() BaseModel {
	now := Now()
	return BaseModel{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

func (b *BaseModel) Base() *BaseModel { return b }

// Touch bumps UpdatedAt.
func (b *BaseModel) Touch() { b.UpdatedAt = Now() }

type State struct {
	BaseModel
	Name string `json:"name"`
}

func (*State) Kind() Kind { return KindState }

func (s *State) MarshalJSON() ([]byte, error) {
	type alias State
	return marshalObject(KindState, (*alias)(s), nil)
}

type City struct {
	BaseModel
	StateID string `json:"state_id"`
	Name    string `json:"name"`
}

func (*City) Kind() Kind { return KindCity }

func (c *City) MarshalJSON() ([]byte, error) {
	type alias City
	return marshalObject(KindCity, (*alias)(c), nil)
}

type Amenity struct {
	BaseModel
	Name string `json:"name"`
}

func (*Amenity) Kind() Kind { return KindAmenity }

func (a *Amenity) MarshalJSON() ([]byte, error) {
	type alias Amenity
	return marshalObject(KindAmenity, (*alias)(a), nil)
}

type User struct {
	BaseModel
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (*User) Kind() Kind { return KindUser }

func (u *User) MarshalJSON() ([]byte, error) {
	type alias User
	return marshalObject(KindUser, (*alias)(u), nil)
}

// SetPassword stores the bcrypt hash of plain.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// HasHashedPassword reports whether Password already holds a bcrypt hash.
func (u *User) HasHashedPassword() bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(u.Password, prefix) {
			return true
		}
	}
	return false
}
