// Package credential keeps the client's session key in the OS keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"github.com/jyothri/mailpilot/constants"
)

const keyringPasswordEnv = "MAILPILOT_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential

var ErrNoSession = errors.New("no stored session; run `mailpilot login`")

type Store struct {
	ring keyring.Keyring
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the system keyring, falling back to an encrypted file under
// fileDir where no system backend exists.
func Open(fileDir string) (*Store, error) {
	password := os.Getenv(keyringPasswordEnv)
	if password == "" {
		password = constants.AppName + "-file-key"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: constants.AppName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// A session is scoped to the server that issued it.
func sessionItemKey(serverUrl string) string {
	return "session:" + strings.TrimRight(serverUrl, "/")
}

func (s *Store) SessionKey(serverUrl string) (string, error) {
	item, err := s.ring.Get(sessionItemKey(serverUrl))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("getting session for %s: %w", serverUrl, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoSession
	}
	return string(item.Data), nil
}

func (s *Store) SaveSessionKey(serverUrl, sessionKey string) error {
	if sessionKey == "" {
		return fmt.Errorf("session key is empty")
	}
	err := s.ring.Set(keyring.Item{
		Key:   sessionItemKey(serverUrl),
		Data:  []byte(sessionKey),
		Label: constants.AppName,
	})
	if err != nil {
		return fmt.Errorf("saving session for %s: %w", serverUrl, err)
	}
	return nil
}

// DeleteSessionKey forgets the session. Forgetting a missing session is not
// an error.
func (s *Store) DeleteSessionKey(serverUrl string) error {
	err := s.ring.Remove(sessionItemKey(serverUrl))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session for %s: %w", serverUrl, err)
	}
	return nil
}
