package storage

import (
	"context"
	"errors"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("storage: record not found")

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)

	// Compatibility cache operations. UpsertCompatibility replaces any
	// entry stored under the same pair key.
	GetCompatibility(ctx context.Context, pairKey string) (*domain.CacheEntry, error)
	UpsertCompatibility(ctx context.Context, entry *domain.CacheEntry) error

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
