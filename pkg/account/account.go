// Package account defines users, their credentials and login sessions.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/courier/pkg/search"
)

// DefaultSessionTTL is how long a login session stays valid.
const DefaultSessionTTL = 14 * 24 * time.Hour

// User is a registered messenger user.
type User struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// NewUser validates r and returns a user with a hashed password.
func NewUser(r Registration) (*User, error) {
	if verr := r.Validate(); verr != nil {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return &User{
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// Candidate exposes the user to ranked search.
func (u *User) Candidate() search.Candidate {
	return search.Candidate{
		Key: u.Username,
		Fields: []search.Field{
			{Name: "username", Value: u.Username},
			{Name: "first_name", Value: u.FirstName},
			{Name: "last_name", Value: u.LastName},
		},
	}
}

// Session is an authenticated login. The token is the bearer credential.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession creates a session for username valid for ttl.
func NewSession(username string, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now().UTC()
	return &Session{
		Token:     uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ErrInvalidCredentials is returned when a username/password pair does not authenticate.
var ErrInvalidCredentials = errors.New("invalid credentials")
