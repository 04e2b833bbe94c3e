package session

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lukasz-falda/libruscli/internal/localstore"
)

type fakeSecrets struct {
	items  map[string][]byte
	getErr error
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{items: map[string][]byte{}}
}

func (f *fakeSecrets) Set(key string, data []byte) error {
	f.items[key] = data
	return nil
}

func (f *fakeSecrets) Get(key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.items[key]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return data, nil
}

func (f *fakeSecrets) Delete(key string) error {
	delete(f.items, key)
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeSecrets) {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}
	secrets := newFakeSecrets()
	return NewStore(local, secrets), secrets
}

func TestTokenRoundTrip(t *testing.T) {
	store, secrets := newTestStore(t)

	if got := store.Token(); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}

	if err := store.SaveToken("tok-123"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if got := store.Token(); got != "tok-123" {
		t.Fatalf("got token %q", got)
	}
	if string(secrets.items[tokenKey]) != "tok-123" {
		t.Fatalf("token not persisted to secrets backend")
	}

	if err := store.ClearToken(); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if got := store.Token(); got != "" {
		t.Fatalf("expected cleared token, got %q", got)
	}
	if _, ok := secrets.items[tokenKey]; ok {
		t.Fatalf("token still present in secrets backend")
	}
}

func TestTokenSourceTracksStore(t *testing.T) {
	store, _ := newTestStore(t)
	source := store.TokenSource()

	if err := store.SaveToken("abc"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if got := source(); got != "abc" {
		t.Fatalf("token source returned %q", got)
	}

	if err := store.ClearToken(); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if got := source(); got != "" {
		t.Fatalf("token source returned %q after clear", got)
	}
}

func TestTokenRetriesAfterTransientBackendFailure(t *testing.T) {
	store, secrets := newTestStore(t)
	secrets.items[tokenKey] = []byte("tok-123")

	secrets.getErr = errors.New("dbus: connection closed")
	if got := store.Token(); got != "" {
		t.Fatalf("expected empty token during backend failure, got %q", got)
	}

	// The failure must not be cached as a missing session.
	secrets.getErr = nil
	if got := store.Token(); got != "tok-123" {
		t.Fatalf("got token %q after backend recovered", got)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	if _, ok := store.Credentials(); ok {
		t.Fatalf("expected no credentials initially")
	}

	if err := store.SaveCredentials("anna", "secret123"); err != nil {
		t.Fatalf("save credentials: %v", err)
	}

	creds, ok := store.Credentials()
	if !ok {
		t.Fatalf("expected stored credentials")
	}
	if creds.Username != "anna" || creds.Password != "secret123" {
		t.Fatalf("got %+v", creds)
	}

	// The persisted password is encoded, not plaintext.
	raw, ok := store.local.Get(passwordKey)
	if !ok {
		t.Fatalf("password key missing")
	}
	if raw == "secret123" {
		t.Fatalf("password stored in plaintext")
	}
	if raw != base64.StdEncoding.EncodeToString([]byte("secret123")) {
		t.Fatalf("unexpected encoded password %q", raw)
	}

	if err := store.ClearCredentials(); err != nil {
		t.Fatalf("clear credentials: %v", err)
	}
	if _, ok := store.Credentials(); ok {
		t.Fatalf("expected cleared credentials")
	}
}

func TestCredentialsWithBadEncodingAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.local.Set(usernameKey, "anna"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.local.Set(passwordKey, "%%% not base64 %%%"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, ok := store.Credentials(); ok {
		t.Fatalf("expected malformed credentials to read as absent")
	}
}
