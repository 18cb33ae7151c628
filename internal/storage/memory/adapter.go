package memory

import (
	"context"
	"sync"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
)

// memoryStorage implements the Storage interface in process memory.
// Records are copied on the way in and out so callers never share them.
type memoryStorage struct {
	mu      sync.RWMutex
	users   map[int64]domain.User
	entries map[string]domain.CacheEntry
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() storage.Storage {
	return &memoryStorage{
		users:   make(map[int64]domain.User),
		entries: make(map[string]domain.CacheEntry),
	}
}

// Migrate is a no-op for the in-memory store
func (s *memoryStorage) Migrate(ctx context.Context) error {
	return nil
}

// SaveUser inserts or updates an authenticated user
func (s *memoryStorage) SaveUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.PlatformID] = *user
	return nil
}

// GetUser retrieves the most recently updated user with the given username
func (s *memoryStorage) GetUser(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.User
	for _, u := range s.users {
		if u.Username != username {
			continue
		}
		if found == nil || u.LastUpdated.After(found.LastUpdated) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// GetCompatibility retrieves the cached result for a pair key
func (s *memoryStorage) GetCompatibility(ctx context.Context, pairKey string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[pairKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entry.Results = append([]byte(nil), entry.Results...)
	return &entry, nil
}

// UpsertCompatibility stores a cached result, replacing any previous entry
func (s *memoryStorage) UpsertCompatibility(ctx context.Context, entry *domain.CacheEntry) error {
	stored := *entry
	stored.Results = append([]byte(nil), entry.Results...)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.PairKey] = stored
	return nil
}

// Close releases nothing; the data is dropped with the process
func (s *memoryStorage) Close() error {
	return nil
}
