package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

// Generator turns a scored pair into a narrative report
type Generator interface {
	Generate(ctx context.Context, req *domain.NarrativeRequest) (*domain.Narrative, error)
}

const (
	maxSharedLanguages = 10
	maxSharedRepos     = 5
	maxNamedFollowers  = 3
)

// Fallback texts used when a reply omits a field
const (
	FallbackMatchType                 = "No match type provided."
	FallbackCompatibilitySummary      = "Unable to generate summary."
	FallbackStrengthsAndOpportunities = "No detailed insights available."
	FallbackCollaborationPlan         = "No collaboration suggestions provided."
	FallbackMotivationalMessage       = "Keep building and collaborating!"
	FallbackActivityTrends            = "No activity data available."
	FallbackRepositoryImpact          = "No repository impact data available."
	FallbackFollowerEngagement        = "No follower data available."
)

// BuildRequest assembles what the generator sees for a scored pair.
// Profiles may be nil, in which case repo counts read as zero.
func BuildRequest(username1, username2 string, profile1, profile2 *domain.Profile, m *domain.Metrics) *domain.NarrativeRequest {
	req := &domain.NarrativeRequest{
		Username1:                 username1,
		Username2:                 username2,
		CompatibilityScore:        m.CompatibilityScore,
		TechnicalAlignmentScore:   m.TechnicalAlignmentScore,
		SkillComplementarityScore: m.SkillComplementarityScore,
		ActivityMatchScore:        m.ActivityMatchScore,
		NetworkSynergyScore:       m.NetworkSynergyScore,
		CulturalAlignmentScore:    m.CulturalAlignmentScore,
		CommunityImpactScore:      m.CommunityImpactScore,
		SharedLanguages:           head(m.SharedLanguages, maxSharedLanguages),
		SharedRepos:               head(m.SharedRepos, maxSharedRepos),
		SharedFollowers:           head(m.SharedFollowers, len(m.SharedFollowers)),
	}

	req.ValuableInsights = domain.ValuableInsights{
		ActivityTrends: fmt.Sprintf("%s has %d public repos, while %s has %d.",
			username1, publicRepos(profile1), username2, publicRepos(profile2)),
		RepositoryImpact: fmt.Sprintf("%s's repos average %s stars, while %s's are gaining momentum.",
			username1, strconv.FormatFloat(m.CommunityImpactScore, 'f', -1, 64), username2),
		FollowerEngagement: followerEngagement(m.SharedFollowers),
	}
	return req
}

func followerEngagement(shared []string) string {
	if len(shared) == 0 {
		return "No shared followers yet."
	}
	return "Shared followers include " + strings.Join(head(shared, maxNamedFollowers), ", ") + "."
}

func publicRepos(p *domain.Profile) int {
	if p == nil {
		return 0
	}
	return p.PublicRepos
}

// head returns a copy of at most n leading elements, never nil
func head(s []string, n int) []string {
	if len(s) < n {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[:n])
	return out
}

// reply mirrors the expected generator output. Fields stay raw so that a
// missing key can be told apart from an empty one.
type reply struct {
	MatchType                 json.RawMessage `json:"match_type"`
	CompatibilitySummary      json.RawMessage `json:"compatibility_summary"`
	StrengthsAndOpportunities json.RawMessage `json:"strengths_and_opportunities"`
	CollaborationPlan         json.RawMessage `json:"collaboration_plan"`
	MotivationalMessage       json.RawMessage `json:"motivational_message"`
	ValuableInsights          json.RawMessage `json:"valuable_insights"`
}

type insightsReply struct {
	ActivityTrends     json.RawMessage `json:"activity_trends"`
	RepositoryImpact   json.RawMessage `json:"repository_impact"`
	FollowerEngagement json.RawMessage `json:"follower_engagement"`
}

// ParseReply decodes generator output into a Narrative, filling every
// missing field with its fallback. Markdown code fences and <think> blocks
// around the JSON are tolerated.
func ParseReply(content string) (*domain.Narrative, error) {
	cleaned := CleanReply(content)
	if cleaned == "" || cleaned == "null" {
		return nil, apperrors.NewNarrativeUnavailableError("received empty response from the narrative generator", nil)
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, apperrors.NewNarrativeUnavailableError(
			fmt.Sprintf("narrative processing error: %v. Response content: %s", err, content), err)
	}

	var insights insightsReply
	if !isNull(r.ValuableInsights) {
		// A non-object here is treated like a missing block.
		_ = json.Unmarshal(r.ValuableInsights, &insights)
	}

	return &domain.Narrative{
		MatchType:                 text(r.MatchType, FallbackMatchType),
		CompatibilitySummary:      text(r.CompatibilitySummary, FallbackCompatibilitySummary),
		StrengthsAndOpportunities: text(r.StrengthsAndOpportunities, FallbackStrengthsAndOpportunities),
		CollaborationPlan:         text(r.CollaborationPlan, FallbackCollaborationPlan),
		MotivationalMessage:       text(r.MotivationalMessage, FallbackMotivationalMessage),
		ValuableInsights: domain.ValuableInsights{
			ActivityTrends:     text(insights.ActivityTrends, FallbackActivityTrends),
			RepositoryImpact:   text(insights.RepositoryImpact, FallbackRepositoryImpact),
			FollowerEngagement: text(insights.FollowerEngagement, FallbackFollowerEngagement),
		},
	}, nil
}

// CleanReply strips reasoning blocks and markdown fences from model output
func CleanReply(s string) string {
	s = stripThinkingTags(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func stripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// text reads a string field; non-string values are kept as their JSON text
func text(raw json.RawMessage, fallback string) string {
	if isNull(raw) {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
