// Package session persists the session token and, when remember-me is
// selected, the login credentials.
package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/lukasz-falda/libruscli/internal/localstore"
)

const tokenKey = "session:token"

// State keys mirror the original web client's storage layout.
const (
	usernameKey = "librus_username"
	passwordKey = "librus_password"
)

var ErrSecretNotFound = errors.New("secret not found")

// Secrets is the persistent backend for the session token.
type Secrets interface {
	Set(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

type Credentials struct {
	Username string
	Password string
}

// Store is the credential and session store. The token is held both in
// the secrets backend and in memory; the in-memory copy is what the API
// client attaches to requests, so saving or clearing the token takes
// effect immediately.
type Store struct {
	mu      sync.Mutex
	secrets Secrets
	local   *localstore.Store
	token   string
	loaded  bool
}

func NewStore(local *localstore.Store, secrets Secrets) *Store {
	return &Store{secrets: secrets, local: local}
}

func (s *Store) SaveToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.secrets.Set(tokenKey, []byte(token)); err != nil {
		return fmt.Errorf("store session token: %w", err)
	}

	s.token = token
	s.loaded = true
	return nil
}

// Token returns the current session token, or "" when no session
// exists. The persisted token is read once and then served from memory.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.token
	}

	data, err := s.secrets.Get(tokenKey)
	if err != nil {
		// Only a definitive miss is cached; a transient keyring failure
		// must not read as "logged out" for the rest of the process.
		if errors.Is(err, ErrSecretNotFound) {
			s.loaded = true
		}
		return ""
	}
	s.token = string(data)
	s.loaded = true
	return s.token
}

func (s *Store) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = true

	if err := s.secrets.Delete(tokenKey); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

// TokenSource exposes the in-memory token to the API client.
func (s *Store) TokenSource() func() string {
	return s.Token
}

// SaveCredentials remembers the login for form pre-fill. The password
// is base64-encoded, which is reversible on purpose: this is a local
// convenience store, not a security boundary.
func (s *Store) SaveCredentials(username, password string) error {
	if err := s.local.Set(usernameKey, username); err != nil {
		return fmt.Errorf("store username: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(password))
	if err := s.local.Set(passwordKey, encoded); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

func (s *Store) Credentials() (Credentials, bool) {
	username, ok := s.local.Get(usernameKey)
	if !ok || username == "" {
		return Credentials{}, false
	}

	encoded, ok := s.local.Get(passwordKey)
	if !ok || encoded == "" {
		return Credentials{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Credentials{}, false
	}

	return Credentials{Username: username, Password: string(decoded)}, true
}

func (s *Store) ClearCredentials() error {
	if err := s.local.Delete(usernameKey); err != nil {
		return err
	}
	return s.local.Delete(passwordKey)
}
