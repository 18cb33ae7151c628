package collector

import (
	"context"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
)

// Collector defines the interface for fetching GitHub user data.
// Every call is made on behalf of the caller's bearer token.
type Collector interface {
	// GetAuthenticatedUser returns the profile that owns token
	GetAuthenticatedUser(ctx context.Context, token string) (*domain.Profile, error)

	// GetProfile retrieves a user profile
	GetProfile(ctx context.Context, login, token string) (*domain.Profile, error)

	// GetRepositories retrieves up to 20 repositories, most recently updated first
	GetRepositories(ctx context.Context, login, token string) ([]*domain.RepositorySummary, error)

	// GetFollowers retrieves the follower logins of a user. Failures are
	// logged and yield an empty set.
	GetFollowers(ctx context.Context, login, token string) domain.FollowerSet
}
