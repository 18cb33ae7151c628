package domain

import "time"

// Profile represents a GitHub user profile
type Profile struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// RepositorySummary holds the repository fields the scorer consumes
type RepositorySummary struct {
	Name            string    `json:"name"`
	Language        *string   `json:"language"`
	Topics          []string  `json:"topics"`
	StargazersCount int       `json:"stargazers_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasLanguage reports whether the repository has a detected primary language
func (r *RepositorySummary) HasLanguage() bool {
	return r.Language != nil && *r.Language != ""
}

// FollowerSet is the set of logins following a user
type FollowerSet map[string]struct{}

// NewFollowerSet builds a FollowerSet from a list of logins
func NewFollowerSet(logins ...string) FollowerSet {
	set := make(FollowerSet, len(logins))
	for _, login := range logins {
		set[login] = struct{}{}
	}
	return set
}

// Has reports whether login is in the set
func (s FollowerSet) Has(login string) bool {
	_, ok := s[login]
	return ok
}

// Signals groups everything fetched for one side of a comparison
type Signals struct {
	Profile      *Profile
	Repositories []*RepositorySummary
	Followers    FollowerSet
}
