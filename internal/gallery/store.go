package gallery

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Store keys. The persistent keys survive restarts; the session keys
// live only as long as the hosting session.
const (
	keyTop12      = "gallery.top12"
	keyPage1      = "gallery.page1"
	keyLastSyncAt = "gallery.lastSyncAt"
	keyNextCursor = "gallery.nextCursor"
	keyHasMore    = "gallery.hasMore"
	keyPinned     = "gallery.pinned"
	keyPinUntil   = "gallery.pinUntil"
)

// KV is a string-keyed store of JSON-serializable values.
//
// Get reports whether the key held a usable value. A corrupt or missing
// value is reported as absent, never as an error the caller must handle:
// the gallery always degrades to defaults rather than failing.
type KV interface {
	Get(key string, dst any) (bool, error)
	Set(key string, val any) error
	Remove(key string) error
}

// MemStore is a volatile in-memory KV. It backs the session layer
// (pinned works and their expiry).
type MemStore struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]json.RawMessage)}
}

// Get unmarshals the stored value for key into dst.
func (s *MemStore) Get(key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// Set stores the JSON encoding of val under key.
func (s *MemStore) Set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.m[key] = raw
	s.mu.Unlock()
	return nil
}

// Remove deletes the value for key.
func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// FileStore is a durable file-per-key KV rooted at a directory. It backs
// the persistent layer (snapshots, cursor, sync timestamp).
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads and unmarshals the value for key. Missing files and corrupt
// JSON both report absent.
func (s *FileStore) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path(key))
	s.mu.Unlock()
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// Set writes the JSON encoding of val, replacing any previous value.
func (s *FileStore) Set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Remove deletes the value for key. Removing an absent key is not an error.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
