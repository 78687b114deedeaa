package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Keys persisted by the session and registration layers. All session
// keys are invalidated together on sign-out.
const (
	KeyAccessToken   = "access_token"
	KeyRefreshToken  = "refresh_token"
	KeyUser          = "user"
	KeyRegistrations = "registrations"
)

var ErrNotFound = errors.New("key not found")

// Store is a single-writer key/value store backed by one JSON file.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a torn state file. An unreadable or corrupt file degrades to an
// empty store: the caller sees a signed-out state instead of a crash.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
	log  *zerolog.Logger
}

func Open(path string, log *zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{
		path: path,
		data: make(map[string]json.RawMessage),
		log:  log,
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("state file unreadable, starting empty")
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("state file corrupt, starting empty")
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get unmarshals the value for key into v. Returns ErrNotFound when the
// key is absent.
func (s *Store) Get(key string, v any) error {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode value for %q: %w", key, err)
	}
	return nil
}

func (s *Store) Set(key string, v any) error {
	return s.SetAll(map[string]any{key: v})
}

// SetAll writes several keys in one persist, so related values (tokens
// plus user record) land on disk together or not at all.
func (s *Store) SetAll(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode value for %q: %w", key, err)
		}
		s.data[key] = raw
	}
	return s.persistLocked()
}

func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return s.persistLocked()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]json.RawMessage)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
