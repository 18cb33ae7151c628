package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
	"github.com/kurihiro0119/github-compatibility/internal/metrics"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
	"github.com/kurihiro0119/github-compatibility/internal/storage/memory"
)

type fakeCollector struct {
	mu          sync.Mutex
	authErr     error
	profiles    map[string]*domain.Profile
	repos       map[string][]*domain.RepositorySummary
	followers   map[string]domain.FollowerSet
	profileErrs map[string]error
	calls       map[string]int
}

func newFakeCollector() *fakeCollector {
	lang := func(s string) *string { return &s }
	return &fakeCollector{
		profiles: map[string]*domain.Profile{
			"alice": {ID: 1, Login: "alice", PublicRepos: 10},
			"bob":   {ID: 2, Login: "bob", PublicRepos: 5},
		},
		repos: map[string][]*domain.RepositorySummary{
			"alice": {
				{Name: "api", Language: lang("Go"), StargazersCount: 10},
				{Name: "ml", Language: lang("Python"), StargazersCount: 2},
			},
			"bob": {
				{Name: "cli", Language: lang("Go"), StargazersCount: 4},
				{Name: "kernel", Language: lang("Rust")},
			},
		},
		followers: map[string]domain.FollowerSet{
			"alice": domain.NewFollowerSet("carol", "dave"),
			"bob":   domain.NewFollowerSet("carol", "erin"),
		},
		profileErrs: map[string]error{},
		calls:       map[string]int{},
	}
}

func (f *fakeCollector) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeCollector) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCollector) GetAuthenticatedUser(ctx context.Context, token string) (*domain.Profile, error) {
	f.count("auth")
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &domain.Profile{ID: 99, Login: "me", AvatarURL: "https://avatars/me"}, nil
}

func (f *fakeCollector) GetProfile(ctx context.Context, login, token string) (*domain.Profile, error) {
	f.count("profile")
	if err := f.profileErrs[login]; err != nil {
		return nil, err
	}
	p, ok := f.profiles[login]
	if !ok {
		return nil, apperrors.NewNotFoundError("GitHub user " + login)
	}
	return p, nil
}

func (f *fakeCollector) GetRepositories(ctx context.Context, login, token string) ([]*domain.RepositorySummary, error) {
	f.count("repos")
	return f.repos[login], nil
}

func (f *fakeCollector) GetFollowers(ctx context.Context, login, token string) domain.FollowerSet {
	f.count("followers")
	if set, ok := f.followers[login]; ok {
		return set
	}
	return domain.FollowerSet{}
}

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
	last  *domain.NarrativeRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req *domain.NarrativeRequest) (*domain.Narrative, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &domain.Narrative{
		MatchType:            "Synergy waiting to happen!",
		CompatibilitySummary: "Good fit.",
		ValuableInsights:     req.ValuableInsights,
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeCollector, *fakeGenerator, storage.Storage) {
	t.Helper()
	c := newFakeCollector()
	g := &fakeGenerator{}
	store := memory.NewMemoryStorage()
	return NewService(c, g, store, 0, opts...), c, g, store
}

func TestService_Analyze(t *testing.T) {
	svc, c, g, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, "Synergy waiting to happen!", result.MatchType)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, []string{"Go"}, result.Metrics.SharedLanguages)
	assert.Equal(t, []string{"carol"}, result.Metrics.SharedFollowers)
	assert.Equal(t, []string{}, result.Metrics.SharedRepos)
	assert.Equal(t, 5.0, result.Metrics.ActivityMatchScore)

	require.NotNil(t, g.last)
	assert.Equal(t, "alice", g.last.Username1)
	assert.Equal(t, "alice has 10 public repos, while bob has 5.", g.last.ValuableInsights.ActivityTrends)

	assert.Equal(t, 2, c.callCount("profile"))
	assert.Equal(t, 2, c.callCount("repos"))
	assert.Equal(t, 2, c.callCount("followers"))

	entry, err := store.GetCompatibility(ctx, "alice:bob")
	require.NoError(t, err)
	stored, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, string(stored), string(entry.Results))

	user, err := store.GetUser(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(99), user.PlatformID)
	assert.Equal(t, "token", user.AccessToken)
}

func TestService_Analyze_CacheHitSkipsPipeline(t *testing.T) {
	svc, c, g, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)

	second, err := svc.Analyze(ctx, "token", "Bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.callCount())
	assert.Equal(t, 2, c.callCount("profile"))
	assert.Equal(t, 2, c.callCount("repos"))
	// The credential is still checked on every request.
	assert.Equal(t, 2, c.callCount("auth"))
}

func TestService_Analyze_StaleEntryRecomputes(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, g, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)

	now = now.Add(24*time.Hour - time.Second)
	_, err = svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, g.callCount())

	now = now.Add(time.Second)
	_, err = svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, g.callCount())
}

func TestService_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name      string
		user1     string
		user2     string
		setup     func(c *fakeCollector, g *fakeGenerator)
		wantCode  apperrors.ErrCode
		wantFetch bool
	}{
		{
			name:     "missing username",
			user1:    "alice",
			user2:    "  ",
			wantCode: apperrors.ErrCodeBadRequest,
		},
		{
			name:  "rejected credential",
			user1: "alice", user2: "bob",
			setup: func(c *fakeCollector, g *fakeGenerator) {
				c.authErr = apperrors.NewUnauthorizedError("invalid or expired GitHub access token")
			},
			wantCode: apperrors.ErrCodeUnauthorized,
		},
		{
			name:  "unknown user",
			user1: "alice", user2: "ghost",
			wantCode:  apperrors.ErrCodeNotFound,
			wantFetch: true,
		},
		{
			name:  "rate limited",
			user1: "alice", user2: "bob",
			setup: func(c *fakeCollector, g *fakeGenerator) {
				c.profileErrs["alice"] = apperrors.NewRateLimitedError("GitHub API rate limit exceeded")
			},
			wantCode:  apperrors.ErrCodeRateLimited,
			wantFetch: true,
		},
		{
			name:  "narrative unavailable",
			user1: "alice", user2: "bob",
			setup: func(c *fakeCollector, g *fakeGenerator) {
				g.err = apperrors.NewNarrativeUnavailableError("received empty response from the narrative generator", nil)
			},
			wantCode:  apperrors.ErrCodeNarrativeUnavailable,
			wantFetch: true,
		},
		{
			name:  "plain generator error",
			user1: "alice", user2: "bob",
			setup: func(c *fakeCollector, g *fakeGenerator) {
				g.err = errors.New("connection reset")
			},
			wantCode:  apperrors.ErrCodeNarrativeUnavailable,
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, c, g, store := newTestService(t)
			if tt.setup != nil {
				tt.setup(c, g)
			}

			result, err := svc.Analyze(context.Background(), "token", tt.user1, tt.user2)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, tt.wantFetch, c.callCount("profile") > 0)

			_, err = store.GetCompatibility(context.Background(), "alice:bob")
			assert.ErrorIs(t, err, storage.ErrNotFound, "failed analyses must not be cached")
		})
	}
}

func TestService_Analyze_NarrativeFailureIsRetriedNextTime(t *testing.T) {
	svc, _, g, _ := newTestService(t)
	ctx := context.Background()

	g.err = apperrors.NewNarrativeUnavailableError("generator down", nil)
	_, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.Error(t, err)

	g.err = nil
	result, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, result.MatchType)
	assert.Equal(t, 2, g.callCount())
}

func TestService_Analyze_FollowerFailureDegrades(t *testing.T) {
	svc, c, _, _ := newTestService(t)
	delete(c.followers, "bob")

	result, err := svc.Analyze(context.Background(), "token", "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, result.Metrics.SharedFollowers)
	assert.Equal(t, 0.0, result.Metrics.NetworkSynergyScore)
}

type flakyStore struct {
	storage.Storage
}

func (flakyStore) SaveUser(ctx context.Context, user *domain.User) error {
	return errors.New("users table locked")
}

func (flakyStore) GetCompatibility(ctx context.Context, pairKey string) (*domain.CacheEntry, error) {
	return nil, errors.New("connection refused")
}

func (flakyStore) UpsertCompatibility(ctx context.Context, entry *domain.CacheEntry) error {
	return errors.New("connection refused")
}

func TestService_Analyze_StorageFailuresAreNotFatal(t *testing.T) {
	g := &fakeGenerator{}
	svc := NewService(newFakeCollector(), g, flakyStore{}, 0)

	result, err := svc.Analyze(context.Background(), "token", "alice", "bob")
	require.NoError(t, err)
	assert.NotNil(t, result.Metrics)
	assert.Equal(t, 1, g.callCount())
}

func TestService_Analyze_UnreadableCacheEntryRecomputes(t *testing.T) {
	svc, _, g, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCompatibility(ctx, &domain.CacheEntry{
		PairKey:   "alice:bob",
		Results:   json.RawMessage(`not json`),
		Timestamp: time.Now(),
	}))

	_, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, g.callCount())
}

func TestService_Score(t *testing.T) {
	svc, _, g, store := newTestService(t)

	m, err := svc.Score(context.Background(), "token", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, m.SharedLanguages)
	assert.Equal(t, 0, g.callCount())

	_, err = store.GetCompatibility(context.Background(), "alice:bob")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_RecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	svc, _, _, _ := newTestService(t, WithMetrics(rec))
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, "token", "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Analyze(ctx, "token", "alice", "carol")
	require.Error(t, err)

	reg := rec.Registry()
	assert.Equal(t, 2.0, counterValue(t, reg, "github_compatibility_cache_lookups_total", metrics.CacheMiss))
	assert.Equal(t, 1.0, counterValue(t, reg, "github_compatibility_cache_lookups_total", metrics.CacheHit))
	assert.Equal(t, 1.0, counterValue(t, reg, "github_compatibility_analyses_total", OutcomeComputed))
	assert.Equal(t, 1.0, counterValue(t, reg, "github_compatibility_analyses_total", OutcomeCached))
	assert.Equal(t, 1.0, counterValue(t, reg, "github_compatibility_analyses_total", "not_found"))
}
