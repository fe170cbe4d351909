package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store keeps the in-memory Identity and its on-disk copy.
// It is safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	current Identity
}

// DefaultPath returns ~/.murdev/identity.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".murdev", "identity.json"), nil
}

// NewStore opens the identity file at path (DefaultPath when empty) and
// loads it. A missing file yields an empty identity.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity dir: %w", err)
	}

	s := &Store{path: path, now: time.Now}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the identity file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current in-memory identity.
func (s *Store) Get() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Load re-reads the identity file and replaces the in-memory identity.
func (s *Store) Load() (Identity, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.set(Identity{})
			return Identity{}, nil
		}
		return Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to parse identity file: %w", err)
	}

	s.set(id)
	return id, nil
}

// Update replaces the in-memory identity with the one described by data
// without touching disk. An empty TokenData resets the identity, which is
// what a fresh pairing starts from.
func (s *Store) Update(data TokenData) {
	s.set(FromTokenData(data, s.now()))
}

// Save updates the in-memory identity from data and persists it.
func (s *Store) Save(data TokenData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := FromTokenData(data, s.now())
	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}

	s.current = id
	return nil
}

// Clear removes the identity file and resets the in-memory identity.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove identity file: %w", err)
	}
	s.current = Identity{}
	return nil
}

func (s *Store) set(id Identity) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}
