package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
)

// DefaultTTL is how long a computed compatibility result stays fresh
const DefaultTTL = 24 * time.Hour

// PairKey builds the cache key for two logins. The key does not depend on
// argument order, and GitHub logins are case-insensitive, so both are lower-cased.
func PairKey(user1, user2 string) string {
	a := strings.ToLower(strings.TrimSpace(user1))
	b := strings.ToLower(strings.TrimSpace(user2))
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Cache is a freshness-checked view over the compatibility_cache store.
// Entries are never deleted; a stale entry is simply treated as a miss.
type Cache struct {
	store storage.Storage
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the wall clock used for freshness checks
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache over store with the given freshness window
func NewCache(store storage.Storage, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the stored entry for the pair if its timestamp is newer than now - TTL
func (c *Cache) Lookup(ctx context.Context, user1, user2 string) (*domain.CacheEntry, bool, error) {
	entry, err := c.store.GetCompatibility(ctx, PairKey(user1, user2))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !entry.Timestamp.After(c.now().Add(-c.ttl)) {
		return entry, false, nil
	}
	return entry, true, nil
}

// LookupResult is Lookup decoded into a CompatibilityResult
func (c *Cache) LookupResult(ctx context.Context, user1, user2 string) (*domain.CompatibilityResult, bool, error) {
	entry, fresh, err := c.Lookup(ctx, user1, user2)
	if err != nil || !fresh {
		return nil, false, err
	}

	var result domain.CompatibilityResult
	if err := json.Unmarshal(entry.Results, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// Store upserts the payload for the pair, replacing any earlier entry
func (c *Cache) Store(ctx context.Context, user1, user2 string, payload json.RawMessage, timestamp time.Time) error {
	return c.store.UpsertCompatibility(ctx, &domain.CacheEntry{
		PairKey:   PairKey(user1, user2),
		Results:   payload,
		Timestamp: timestamp,
	})
}

// StoreResult encodes result and upserts it with the current time
func (c *Cache) StoreResult(ctx context.Context, user1, user2 string, result *domain.CompatibilityResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.Store(ctx, user1, user2, payload, c.now())
}
