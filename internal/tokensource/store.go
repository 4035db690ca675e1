package tokensource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keyring identifiers used by KeyringStore.
const (
	KeyringService = "claudebridge"
	KeyringUser    = "upstream-api-key"
)

var (
	// ErrNoToken is returned when the store holds no API key.
	ErrNoToken = errors.New("no API key stored")

	// ErrReadOnly is returned when writing to a store that cannot be modified.
	ErrReadOnly = errors.New("store is read-only")
)

// Store persists the upstream API key. Writing an empty key clears it.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, key string) error
}

// EnvStore reads the key from an environment variable.
type EnvStore struct {
	Name string
}

// NewEnvStore creates a store reading the given variable.
func NewEnvStore(name string) *EnvStore {
	return &EnvStore{Name: name}
}

func (s *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := strings.TrimSpace(os.Getenv(s.Name))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoToken, s.Name)
	}
	return key, nil
}

func (s *EnvStore) Write(context.Context, string) error {
	return fmt.Errorf("%w: set %s in the environment instead", ErrReadOnly, s.Name)
}

// FileStore keeps the key in a file.
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNoToken, s.Path)
	}
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, s.Path)
	}
	return key, nil
}

func (s *FileStore) Write(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove key file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// KeyringStore keeps the key in the operating system keyring.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore creates a store using the default service and user names.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: KeyringService, User: KeyringUser}
}

func (s *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: keyring entry %s/%s not found", ErrNoToken, s.Service, s.User)
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	if key == "" {
		return "", ErrNoToken
	}
	return key, nil
}

func (s *KeyringStore) Write(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("delete keyring entry: %w", err)
		}
		return nil
	}
	if err := keyring.Set(s.Service, s.User, key); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}
