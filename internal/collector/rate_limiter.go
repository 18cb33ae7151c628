package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

// RateLimiter manages GitHub API rate limiting
type RateLimiter interface {
	// Wait paces the next call and fails fast when token's quota is known to be exhausted
	Wait(ctx context.Context, token string) error
	CheckLimit(token string) (remaining int, resetTime time.Time, known bool)
	UpdateLimit(token string, remaining int, resetTime time.Time)
}

type quota struct {
	remaining int
	resetTime time.Time
}

// githubRateLimiter implements RateLimiter for GitHub API.
// Quotas are tracked per credential because GitHub meters each token separately.
type githubRateLimiter struct {
	mu     sync.Mutex
	pacer  *rate.Limiter
	quotas map[string]quota
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() RateLimiter {
	return &githubRateLimiter{
		pacer:  rate.NewLimiter(rate.Every(20*time.Millisecond), 20),
		quotas: make(map[string]quota),
		now:    time.Now,
	}
}

// Wait waits until it's safe to make another API call
func (r *githubRateLimiter) Wait(ctx context.Context, token string) error {
	remaining, resetTime, known := r.CheckLimit(token)
	if known && remaining <= 0 && r.now().Before(resetTime) {
		return apperrors.NewRateLimitedError(fmt.Sprintf(
			"GitHub API rate limit exceeded, resets at %s", resetTime.UTC().Format(time.RFC3339)))
	}

	return r.pacer.Wait(ctx)
}

// CheckLimit returns the last quota GitHub reported for token
func (r *githubRateLimiter) CheckLimit(token string) (int, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quotas[fingerprint(token)]
	return q.remaining, q.resetTime, ok
}

// UpdateLimit updates the rate limit from API response headers
func (r *githubRateLimiter) UpdateLimit(token string, remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.quotas[fingerprint(token)] = quota{remaining: remaining, resetTime: resetTime}
}

// fingerprint keeps raw tokens out of the quota map
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
