package session

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/lukasz-falda/libruscli/internal/config"
)

const (
	keyringPasswordEnv = "LIBRUSCLI_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential
	keyringBackendEnv  = "LIBRUSCLI_KEYRING_BACKEND"  //nolint:gosec // env var name, not a credential
)

var (
	errNoTTY                 = errors.New("no TTY available for keyring file backend password prompt")
	errInvalidKeyringBackend = errors.New("invalid keyring backend")
	errKeyringTimeout        = errors.New("keyring connection timed out")
	keyringOpenFunc          = keyring.Open
)

const keyringBackendAuto = "auto"

type keyringConfig struct {
	KeyringBackend string `yaml:"keyring_backend"`
}

func resolveKeyringBackend() (string, error) {
	if v := normalizeKeyringBackend(os.Getenv(keyringBackendEnv)); v != "" {
		return v, nil
	}

	path, err := config.ConfigPath()
	if err != nil {
		return "", err
	}

	b, err := os.ReadFile(path) //nolint:gosec // config path is trusted
	if err != nil {
		if os.IsNotExist(err) {
			return keyringBackendAuto, nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}

	var cfg keyringConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return "", fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := normalizeKeyringBackend(cfg.KeyringBackend); v != "" {
		return v, nil
	}

	return keyringBackendAuto, nil
}

func allowedBackends(backend string) ([]keyring.BackendType, error) {
	switch backend {
	case "", keyringBackendAuto:
		return nil, nil
	case "keychain":
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case "file":
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, keychain, or file)", errInvalidKeyringBackend, backend, keyringBackendAuto)
	}
}

func fileKeyringPasswordFunc() keyring.PromptFunc {
	password, passwordSet := os.LookupEnv(keyringPasswordEnv)
	// Treat "set to empty string" as intentional; empty passphrase is valid.
	if passwordSet {
		return keyring.FixedStringPrompt(password)
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return keyring.TerminalPrompt
	}

	return func(_ string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, keyringPasswordEnv)
	}
}

func normalizeKeyringBackend(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// keyringOpenTimeout is the maximum time to wait for keyring.Open() to
// complete. On headless Linux, D-Bus SecretService can hang indefinitely
// if gnome-keyring is installed but not running.
const keyringOpenTimeout = 5 * time.Second

func openKeyring() (keyring.Keyring, error) {
	keyringDir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, fmt.Errorf("ensure keyring dir: %w", err)
	}

	backend, err := resolveKeyringBackend()
	if err != nil {
		return nil, err
	}

	backends, err := allowedBackends(backend)
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	// On Linux with "auto" backend and no D-Bus session, force file backend.
	if runtime.GOOS == "linux" && backend == keyringBackendAuto && dbusAddr == "" {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	cfg := keyring.Config{
		ServiceName:              config.AppName,
		KeychainTrustApplication: false,
		AllowedBackends:          backends,
		FileDir:                  keyringDir,
		FilePasswordFunc:         fileKeyringPasswordFunc(),
	}

	if runtime.GOOS == "linux" && backend == keyringBackendAuto && dbusAddr != "" {
		return openKeyringWithTimeout(cfg, keyringOpenTimeout)
	}

	ring, err := keyringOpenFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return ring, nil
}

type keyringResult struct {
	ring keyring.Keyring
	err  error
}

// openKeyringWithTimeout wraps keyring.Open with a timeout to prevent
// indefinite hangs.
func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	ch := make(chan keyringResult, 1)

	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- keyringResult{ring, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}

		return res.ring, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v (D-Bus SecretService may be unresponsive); "+
			"set %s=file and %s=<password> to use encrypted file storage instead",
			errKeyringTimeout, timeout, keyringBackendEnv, keyringPasswordEnv)
	}
}

// keyringSecrets adapts a 99designs keyring to the Secrets interface.
type keyringSecrets struct {
	ring keyring.Keyring
}

// OpenKeyringSecrets opens the platform keyring (or the encrypted file
// fallback) used to persist the session token.
func OpenKeyringSecrets() (Secrets, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &keyringSecrets{ring: ring}, nil
}

func (k *keyringSecrets) Set(key string, data []byte) error {
	return k.ring.Set(keyring.Item{
		Key:   key,
		Data:  data,
		Label: config.AppName,
	})
}

func (k *keyringSecrets) Get(key string) ([]byte, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return item.Data, nil
}

func (k *keyringSecrets) Delete(key string) error {
	if err := k.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
