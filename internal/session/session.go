// Package session implements the process-wide local session cache: a small
// key/value store persisted across restarts. It holds the role selection,
// the unlock-stage flags, the last love-sent timestamp, and the love-spam
// session marker. Writes are rare and last-write-wins is the intended
// semantics for per-user session flags.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Well-known keys.
const (
	KeyRole          = "role"            // active role selection (storage scheme)
	KeyUnlocked      = "unlocked"        // password stage passed
	KeyCaptchaPassed = "captcha_passed"  // captcha stage passed
	KeyEventSeen     = "event_dismissed" // event splash dismissed
	KeyLastLoveSent  = "last_love_sent"  // epoch millis
	KeyLoveSpamStart = "love_spam_start" // epoch millis, absent when stopped
)

// Store is the session cache capability. Get reports absence via the bool;
// Set and Delete persist immediately.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemStore is the fallback used when no persistence path is configured
// (the "no browsing-client context" case): everything works, nothing
// survives a restart.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{m: map[string]string{}} }

// Get returns the stored value, if any.
func (s *MemStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores the value.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// Delete removes the key.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// FileStore persists the map as a JSON file, rewritten atomically on every
// write via a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	m    map[string]string
}

// OpenFile loads (or initializes) a file-backed store at path.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, m: map[string]string{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the stored value, if any.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores the value and rewrites the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return s.flushLocked()
}

// Delete removes the key and rewrites the file.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Open returns a FileStore when path is non-empty (creating the parent
// directory if needed) and a MemStore otherwise.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemStore(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return OpenFile(path)
}

// GetTime reads an epoch-millis key as a time.Time.
func GetTime(s Store, key string) (time.Time, bool) {
	v, ok := s.Get(key)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// SetTime stores a time.Time under key as epoch millis.
func SetTime(s Store, key string, t time.Time) error {
	return s.Set(key, strconv.FormatInt(t.UnixMilli(), 10))
}

// GetBool reads a boolean flag; absent keys read as false.
func GetBool(s Store, key string) bool {
	v, ok := s.Get(key)
	return ok && v == "true"
}

// SetBool stores a boolean flag.
func SetBool(s Store, key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}
