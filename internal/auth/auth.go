// Package auth implements the demo login. There is a single configured user
// and tokens live in memory for the life of the process.
package auth

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is an issued token.
type Session struct {
	Token    string    `json:"token"`
	User     string    `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

// Authenticator checks the demo credentials and tracks issued tokens.
type Authenticator struct {
	username string
	password string

	mu       sync.RWMutex
	sessions map[string]Session
}

// New creates an Authenticator for the configured demo user.
func New(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		username: cfg.Username,
		password: cfg.Password,
		sessions: make(map[string]Session),
	}
}

// Login issues a token when username and password match.
func (a *Authenticator) Login(username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return Session{}, ErrInvalidCredentials
	}

	s := Session{
		Token:    uuid.NewString(),
		User:     username,
		IssuedAt: time.Now(),
	}

	a.mu.Lock()
	a.sessions[s.Token] = s
	a.mu.Unlock()
	return s, nil
}

// Lookup returns the session behind token.
func (a *Authenticator) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[token]
	return s, ok
}

// Validate reports whether token was issued by Login.
func (a *Authenticator) Validate(token string) bool {
	_, ok := a.Lookup(token)
	return ok
}

// Logout forgets token.
func (a *Authenticator) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}
