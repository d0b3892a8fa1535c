package draft

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the key/value backing for anonymous drafts. Keys are the
// prefixed section names; values are raw JSON payloads.
type Storage interface {
	ReadItem(key string) ([]byte, bool, error)
	WriteItem(key string, value []byte) error
	RemoveItem(key string) error
}

// FileStorage keeps one JSON file per key under a directory. It survives
// process restarts the way browser storage survives page reloads.
type FileStorage struct {
	dir string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) ReadItem(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *FileStorage) WriteItem(key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStorage) RemoveItem(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStorage is an in-process Storage for tests.
type MemStorage struct {
	mu     sync.Mutex
	items  map[string][]byte
	writes int

	// FailWrites makes every WriteItem error, for failure-path tests.
	FailWrites error
}

var _ Storage = (*MemStorage)(nil)

func NewMemStorage() *MemStorage {
	return &MemStorage{items: make(map[string][]byte)}
}

func (s *MemStorage) ReadItem(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemStorage) WriteItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.writes++
	out := make([]byte, len(value))
	copy(out, value)
	s.items[key] = out
	return nil
}

func (s *MemStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len reports the number of stored keys.
func (s *MemStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Writes reports how many successful WriteItem calls happened.
func (s *MemStorage) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
