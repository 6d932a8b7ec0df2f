package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Storage is the durable client-local key-value store holding the
// serialized profile record. It models browser local storage: best-effort,
// string-valued, survives process restarts.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is an in-process Storage, used in tests and as a fallback
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStorage persists records as a single JSON file on disk
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a FileStorage backed by the given path
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		values = make(map[string]string)
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// CookieStore is the transport-visible cookie channel holding the token
// reference. Separate from Storage: the two can go out of sync and the
// token side is authoritative for IsAuthenticated.
type CookieStore interface {
	GetCookie(name string) (string, bool)
	SetCookie(name, value string, maxAge time.Duration)
	DeleteCookie(name string)
}

type memoryCookie struct {
	value     string
	expiresAt time.Time
}

// MemoryCookieStore is an in-process CookieStore with max-age handling
type MemoryCookieStore struct {
	mu      sync.RWMutex
	cookies map[string]memoryCookie
}

// NewMemoryCookieStore creates an empty MemoryCookieStore
func NewMemoryCookieStore() *MemoryCookieStore {
	return &MemoryCookieStore{cookies: make(map[string]memoryCookie)}
}

func (s *MemoryCookieStore) GetCookie(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[name]
	if !ok || c.value == "" {
		return "", false
	}
	if !c.expiresAt.IsZero() && time.Now().After(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (s *MemoryCookieStore) SetCookie(name, value string, maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := memoryCookie{value: value}
	if maxAge > 0 {
		c.expiresAt = time.Now().Add(maxAge)
	}
	s.cookies[name] = c
}

func (s *MemoryCookieStore) DeleteCookie(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cookies, name)
}
