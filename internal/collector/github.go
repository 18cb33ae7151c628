package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

const (
	// DefaultBaseURL is the public GitHub REST API
	DefaultBaseURL = "https://api.github.com/"
	// DefaultTimeout bounds every individual GitHub call
	DefaultTimeout = 10 * time.Second

	repositoriesPerPage = 20
	followersPerPage    = 30
)

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	baseURL     *url.URL
	timeout     time.Duration
	httpClient  *http.Client
	rateLimiter RateLimiter
}

// NewGitHubCollector creates a new GitHub collector. An empty baseURL
// selects api.github.com; a non-positive timeout selects DefaultTimeout.
func NewGitHubCollector(baseURL string, timeout time.Duration) (Collector, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &githubCollector{
		baseURL:     u,
		timeout:     timeout,
		httpClient:  &http.Client{},
		rateLimiter: NewRateLimiter(),
	}, nil
}

// GetAuthenticatedUser returns the profile that owns token
func (c *githubCollector) GetAuthenticatedUser(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("missing GitHub access token")
	}
	if err := c.rateLimiter.Wait(ctx, token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user, resp, err := c.client(token).Users.Get(ctx, "")
	c.updateRateLimitFromResponse(token, resp)
	if err != nil {
		err = classifyError(err, resp, "authenticated user")
		if apperrors.IsUnauthorized(err) {
			return nil, apperrors.NewUnauthorizedError("invalid or expired GitHub access token")
		}
		return nil, err
	}

	return toProfile(user), nil
}

// GetProfile retrieves a user profile
func (c *githubCollector) GetProfile(ctx context.Context, login, token string) (*domain.Profile, error) {
	if login == "" {
		return nil, apperrors.NewBadRequestError("username must not be empty")
	}
	if err := c.rateLimiter.Wait(ctx, token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user, resp, err := c.client(token).Users.Get(ctx, login)
	c.updateRateLimitFromResponse(token, resp)
	if err != nil {
		return nil, classifyError(err, resp, fmt.Sprintf("GitHub user %s", login))
	}

	return toProfile(user), nil
}

// GetRepositories retrieves up to 20 repositories, most recently updated first
func (c *githubCollector) GetRepositories(ctx context.Context, login, token string) ([]*domain.RepositorySummary, error) {
	if login == "" {
		return nil, apperrors.NewBadRequestError("username must not be empty")
	}
	if err := c.rateLimiter.Wait(ctx, token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: repositoriesPerPage},
	}
	repos, resp, err := c.client(token).Repositories.List(ctx, login, opts)
	c.updateRateLimitFromResponse(token, resp)
	if err != nil {
		return nil, classifyError(err, resp, fmt.Sprintf("repositories for %s", login))
	}

	summaries := make([]*domain.RepositorySummary, 0, min(len(repos), repositoriesPerPage))
	for _, repo := range repos {
		if len(summaries) == repositoriesPerPage {
			break
		}
		summaries = append(summaries, &domain.RepositorySummary{
			Name:            repo.GetName(),
			Language:        repo.Language,
			Topics:          repo.Topics,
			StargazersCount: repo.GetStargazersCount(),
			UpdatedAt:       repo.GetUpdatedAt().Time,
		})
	}

	return summaries, nil
}

// GetFollowers retrieves the follower logins of a user
func (c *githubCollector) GetFollowers(ctx context.Context, login, token string) domain.FollowerSet {
	followers, err := c.listFollowers(ctx, login, token)
	if err != nil {
		slog.Warn("Failed to fetch followers, continuing without them", "username", login, "error", err)
		return domain.FollowerSet{}
	}
	return followers
}

func (c *githubCollector) listFollowers(ctx context.Context, login, token string) (domain.FollowerSet, error) {
	if login == "" {
		return nil, apperrors.NewBadRequestError("username must not be empty")
	}
	if err := c.rateLimiter.Wait(ctx, token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	users, resp, err := c.client(token).Users.ListFollowers(ctx, login, &github.ListOptions{PerPage: followersPerPage})
	c.updateRateLimitFromResponse(token, resp)
	if err != nil {
		return nil, classifyError(err, resp, fmt.Sprintf("followers of %s", login))
	}

	followers := make(domain.FollowerSet, len(users))
	for _, u := range users {
		if l := u.GetLogin(); l != "" {
			followers[l] = struct{}{}
		}
	}
	return followers, nil
}

// client builds a GitHub client that authenticates as token
func (c *githubCollector) client(token string) *github.Client {
	httpClient := c.httpClient
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := github.NewClient(httpClient)
	client.BaseURL = c.baseURL
	return client
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubCollector) updateRateLimitFromResponse(token string, resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(token, resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

func toProfile(u *github.User) *domain.Profile {
	return &domain.Profile{
		ID:          u.GetID(),
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		AvatarURL:   u.GetAvatarURL(),
		PublicRepos: u.GetPublicRepos(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
	}
}

// classifyError maps a go-github failure onto the application error taxonomy
func classifyError(err error, resp *github.Response, resource string) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		ghErr    *github.ErrorResponse
	)

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	detail := err.Error()
	if errors.As(err, &ghErr) && ghErr.Message != "" {
		detail = ghErr.Message
	}

	switch {
	case errors.As(err, &rateErr):
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeRateLimited,
			Message: fmt.Sprintf("GitHub API rate limit exceeded, resets at %s", rateErr.Rate.Reset.UTC().Format(time.RFC3339)),
			Status:  status,
			Err:     err,
		}
	case errors.As(err, &abuseErr):
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeRateLimited,
			Message: "GitHub secondary rate limit triggered: " + abuseErr.Message,
			Status:  status,
			Err:     err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamError(fmt.Sprintf("timed out fetching %s", resource), http.StatusGatewayTimeout, err)
	}

	switch status {
	case http.StatusUnauthorized:
		appErr := apperrors.NewUnauthorizedError(fmt.Sprintf("GitHub rejected the access token: %s", detail))
		appErr.Err = err
		return appErr
	case http.StatusNotFound:
		appErr := apperrors.NewNotFoundError(resource)
		appErr.Message = fmt.Sprintf("%s not found. Error: %s", resource, detail)
		appErr.Err = err
		return appErr
	case http.StatusTooManyRequests:
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeRateLimited,
			Message: fmt.Sprintf("GitHub API rate limit exceeded: %s", detail),
			Status:  status,
			Err:     err,
		}
	}

	return apperrors.NewUpstreamError(fmt.Sprintf("failed to fetch %s: %s", resource, detail), status, err)
}
