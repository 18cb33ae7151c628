// Package matcher runs the compatibility pipeline for a pair of GitHub users:
// credential check, cache lookup, fetch, score, narrate and persist.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kurihiro0119/github-compatibility/internal/cache"
	"github.com/kurihiro0119/github-compatibility/internal/collector"
	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
	"github.com/kurihiro0119/github-compatibility/internal/metrics"
	"github.com/kurihiro0119/github-compatibility/internal/narrative"
	"github.com/kurihiro0119/github-compatibility/internal/scorer"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
)

// Analysis outcomes that are not error codes
const (
	OutcomeCached   = "cached"
	OutcomeComputed = "computed"
)

// Service orchestrates one compatibility analysis per call. Calls are
// independent and may run concurrently.
type Service struct {
	collector collector.Collector
	generator narrative.Generator
	store     storage.Storage
	cache     *cache.Cache
	metrics   *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records pipeline counters on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithLogger overrides slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the wall clock used for cache freshness and timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a pipeline over the given collaborators. A
// non-positive ttl selects cache.DefaultTTL.
func NewService(c collector.Collector, g narrative.Generator, store storage.Storage, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		collector: c,
		generator: g,
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.NewCache(store, ttl, cache.WithClock(s.now))
	return s
}

// Cache exposes the result cache the service reads and writes
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Analyze returns the merged narrative and metrics for two users. A fresh
// cached result is returned without touching GitHub or the generator.
func (s *Service) Analyze(ctx context.Context, token, username1, username2 string) (result *domain.CompatibilityResult, err error) {
	start := time.Now()
	outcome := OutcomeComputed
	defer func() {
		if err != nil {
			outcome = string(apperrors.CodeOf(err))
		}
		s.metrics.Analysis(outcome, time.Since(start))
	}()

	username1, username2, err = normalizePair(username1, username2)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("pair_key", cache.PairKey(username1, username2))

	if err := s.validateCredential(ctx, token); err != nil {
		return nil, err
	}

	if cached := s.lookup(ctx, logger, username1, username2); cached != nil {
		outcome = OutcomeCached
		return cached, nil
	}

	a, b, err := s.fetchPair(ctx, token, username1, username2)
	if err != nil {
		return nil, err
	}

	m := scorer.Score(*a, *b)

	n, err := s.generator.Generate(ctx, narrative.BuildRequest(username1, username2, a.Profile, b.Profile, m))
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewNarrativeUnavailableError("narrative generation failed: "+err.Error(), err)
		}
		s.metrics.UpstreamError("narrative", string(apperrors.CodeOf(err)))
		logger.Error("Narrative generation failed", "error", err)
		return nil, err
	}

	result = &domain.CompatibilityResult{Narrative: *n, Metrics: m}
	if err := s.cache.StoreResult(ctx, username1, username2, result); err != nil {
		logger.Error("Failed to store compatibility result", "error", err)
	}

	logger.Info("Compatibility analyzed", "compatibility_score", m.CompatibilityScore)
	return result, nil
}

// Score fetches both users and returns their metrics. It skips the cache and
// the narrative generator.
func (s *Service) Score(ctx context.Context, token, username1, username2 string) (*domain.Metrics, error) {
	username1, username2, err := normalizePair(username1, username2)
	if err != nil {
		return nil, err
	}
	a, b, err := s.fetchPair(ctx, token, username1, username2)
	if err != nil {
		return nil, err
	}
	return scorer.Score(*a, *b), nil
}

func normalizePair(username1, username2 string) (string, string, error) {
	username1 = strings.TrimSpace(username1)
	username2 = strings.TrimSpace(username2)
	if username1 == "" || username2 == "" {
		return "", "", apperrors.NewBadRequestError("username1 and username2 are required")
	}
	return username1, username2, nil
}

// validateCredential resolves the token owner and records it in users.
// Failing to persist the user does not fail the request.
func (s *Service) validateCredential(ctx context.Context, token string) error {
	me, err := s.collector.GetAuthenticatedUser(ctx, token)
	if err != nil {
		return s.githubFailure(err)
	}

	user := &domain.User{
		PlatformID:  me.ID,
		Username:    me.Login,
		AccessToken: token,
		AvatarURL:   me.AvatarURL,
		LastUpdated: s.now(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		s.logger.Warn("Failed to save user", "username", me.Login, "error", err)
	}
	return nil
}

// lookup returns a fresh cached result or nil. Storage errors and
// undecodable payloads count as a miss.
func (s *Service) lookup(ctx context.Context, logger *slog.Logger, username1, username2 string) *domain.CompatibilityResult {
	entry, fresh, err := s.cache.Lookup(ctx, username1, username2)
	switch {
	case err != nil:
		s.metrics.CacheLookup(metrics.CacheError)
		logger.Warn("Cache lookup failed, recomputing", "error", err)
		return nil
	case entry == nil:
		s.metrics.CacheLookup(metrics.CacheMiss)
		return nil
	case !fresh:
		s.metrics.CacheLookup(metrics.CacheStale)
		logger.Debug("Cached result is stale", "stored_at", entry.Timestamp)
		return nil
	}

	var result domain.CompatibilityResult
	if err := json.Unmarshal(entry.Results, &result); err != nil {
		s.metrics.CacheLookup(metrics.CacheError)
		logger.Warn("Cached result is unreadable, recomputing", "error", err)
		return nil
	}

	s.metrics.CacheLookup(metrics.CacheHit)
	logger.Debug("Serving cached result", "stored_at", entry.Timestamp)
	return &result
}

// fetchPair collects signals for both users: profiles first, then
// repositories, then followers. Profile and repository failures abort;
// follower failures already degrade to an empty set.
func (s *Service) fetchPair(ctx context.Context, token, username1, username2 string) (*domain.Signals, *domain.Signals, error) {
	var a, b domain.Signals
	var err error

	if a.Profile, err = s.collector.GetProfile(ctx, username1, token); err != nil {
		return nil, nil, s.githubFailure(err)
	}
	if b.Profile, err = s.collector.GetProfile(ctx, username2, token); err != nil {
		return nil, nil, s.githubFailure(err)
	}
	if a.Repositories, err = s.collector.GetRepositories(ctx, username1, token); err != nil {
		return nil, nil, s.githubFailure(err)
	}
	if b.Repositories, err = s.collector.GetRepositories(ctx, username2, token); err != nil {
		return nil, nil, s.githubFailure(err)
	}

	a.Followers = s.collector.GetFollowers(ctx, username1, token)
	b.Followers = s.collector.GetFollowers(ctx, username2, token)
	return &a, &b, nil
}

func (s *Service) githubFailure(err error) error {
	s.metrics.UpstreamError("github", string(apperrors.CodeOf(err)))
	return err
}
