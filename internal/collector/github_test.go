package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

const goodToken = "ghp_good"

type fakeGitHub struct {
	*httptest.Server
	hits atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)

		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}

		switch path := r.URL.Path; {
		case path == "/user":
			writeJSON(w, http.StatusOK, map[string]any{"id": 7, "login": "me", "avatar_url": "https://avatars/me"})
		case path == "/users/alice":
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "login": "alice", "name": "Alice", "public_repos": 12, "followers": 3})
		case path == "/users/alice/repos":
			if r.URL.Query().Get("per_page") != "20" || r.URL.Query().Get("sort") != "updated" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unexpected query " + r.URL.RawQuery})
				return
			}
			repos := make([]map[string]any, 0, 25)
			for i := 0; i < 25; i++ {
				repo := map[string]any{
					"name":             fmt.Sprintf("repo-%d", i),
					"stargazers_count": i,
					"topics":           []string{"cli"},
					"updated_at":       time.Date(2024, 1, 25-i, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
				}
				if i%2 == 0 {
					repo["language"] = "Go"
				}
				repos = append(repos, repo)
			}
			writeJSON(w, http.StatusOK, repos)
		case path == "/users/alice/followers":
			writeJSON(w, http.StatusOK, []map[string]string{{"login": "carol"}, {"login": "dave"}})
		case strings.HasPrefix(path, "/users/broken"):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		case strings.HasPrefix(path, "/users/limited"):
			w.Header().Set("X-RateLimit-Limit", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "API rate limit exceeded"})
		case strings.HasPrefix(path, "/users/busy"):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Too Many Requests"})
		case strings.HasPrefix(path, "/users/slow"):
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{"login": "slow"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestCollector(t *testing.T, server *fakeGitHub, timeout time.Duration) Collector {
	t.Helper()
	c, err := NewGitHubCollector(server.URL, timeout)
	require.NoError(t, err)
	return c
}

func TestNewGitHubCollector_Defaults(t *testing.T) {
	c, err := NewGitHubCollector("", 0)
	require.NoError(t, err)

	gc := c.(*githubCollector)
	assert.Equal(t, DefaultBaseURL, gc.baseURL.String())
	assert.Equal(t, DefaultTimeout, gc.timeout)

	c, err = NewGitHubCollector("https://ghe.example.com/api/v3", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", c.(*githubCollector).baseURL.String())
}

func TestGitHubCollector_GetAuthenticatedUser(t *testing.T) {
	server := newFakeGitHub(t)

	tests := []struct {
		name     string
		token    string
		wantCode apperrors.ErrCode
	}{
		{"valid token", goodToken, ""},
		{"rejected token", "ghp_bad", apperrors.ErrCodeUnauthorized},
		{"missing token", "", apperrors.ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollector(t, server, time.Second)

			profile, err := c.GetAuthenticatedUser(context.Background(), tt.token)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "me", profile.Login)
			assert.Equal(t, int64(7), profile.ID)
			assert.Equal(t, "https://avatars/me", profile.AvatarURL)
		})
	}
}

func TestGitHubCollector_GetProfile(t *testing.T) {
	server := newFakeGitHub(t)

	tests := []struct {
		name       string
		login      string
		timeout    time.Duration
		wantCode   apperrors.ErrCode
		wantStatus int
	}{
		{name: "existing user", login: "alice"},
		{name: "unknown user", login: "ghost", wantCode: apperrors.ErrCodeNotFound, wantStatus: http.StatusNotFound},
		{name: "empty login", login: "", wantCode: apperrors.ErrCodeBadRequest, wantStatus: http.StatusBadRequest},
		{name: "primary rate limit", login: "limited", wantCode: apperrors.ErrCodeRateLimited, wantStatus: http.StatusForbidden},
		{name: "too many requests", login: "busy", wantCode: apperrors.ErrCodeRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "server error", login: "broken", wantCode: apperrors.ErrCodeUpstream, wantStatus: http.StatusInternalServerError},
		{name: "timeout", login: "slow", timeout: 50 * time.Millisecond, wantCode: apperrors.ErrCodeUpstream, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			c := newTestCollector(t, server, timeout)

			profile, err := c.GetProfile(context.Background(), tt.login, goodToken)
			if tt.wantCode != "" {
				require.Error(t, err)
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				assert.Equal(t, tt.wantStatus, appErr.HTTPStatus())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", profile.Login)
			assert.Equal(t, "Alice", profile.Name)
			assert.Equal(t, 12, profile.PublicRepos)
		})
	}
}

func TestGitHubCollector_ExhaustedQuotaFailsFast(t *testing.T) {
	server := newFakeGitHub(t)
	c := newTestCollector(t, server, time.Second)
	ctx := context.Background()

	_, err := c.GetProfile(ctx, "limited", goodToken)
	require.True(t, apperrors.IsRateLimited(err))
	hits := server.hits.Load()

	_, err = c.GetProfile(ctx, "alice", goodToken)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, hits, server.hits.Load(), "exhausted credential must not reach GitHub")
}

func TestGitHubCollector_GetRepositories(t *testing.T) {
	server := newFakeGitHub(t)
	c := newTestCollector(t, server, time.Second)

	repos, err := c.GetRepositories(context.Background(), "alice", goodToken)
	require.NoError(t, err)
	require.Len(t, repos, 20)

	assert.Equal(t, "repo-0", repos[0].Name)
	require.NotNil(t, repos[0].Language)
	assert.Equal(t, "Go", *repos[0].Language)
	assert.Nil(t, repos[1].Language)
	assert.Equal(t, []string{"cli"}, repos[3].Topics)
	assert.Equal(t, 3, repos[3].StargazersCount)
	assert.True(t, repos[0].UpdatedAt.After(repos[1].UpdatedAt))

	_, err = c.GetRepositories(context.Background(), "ghost", goodToken)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = c.GetRepositories(context.Background(), "alice", "ghp_bad")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestGitHubCollector_GetFollowers(t *testing.T) {
	server := newFakeGitHub(t)
	c := newTestCollector(t, server, time.Second)
	ctx := context.Background()

	followers := c.GetFollowers(ctx, "alice", goodToken)
	assert.Len(t, followers, 2)
	assert.True(t, followers.Has("carol"))
	assert.True(t, followers.Has("dave"))

	for _, login := range []string{"broken", "ghost", ""} {
		t.Run("degrades for "+login, func(t *testing.T) {
			followers := c.GetFollowers(ctx, login, goodToken)
			assert.NotNil(t, followers)
			assert.Empty(t, followers)
		})
	}
}
