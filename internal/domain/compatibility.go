package domain

// Metrics is the output of the compatibility scorer
type Metrics struct {
	CompatibilityScore        float64 `json:"compatibility_score"`
	TechnicalAlignmentScore   float64 `json:"technical_alignment_score"`
	SkillComplementarityScore float64 `json:"skill_complementarity_score"`
	ActivityMatchScore        float64 `json:"activity_match_score"`
	NetworkSynergyScore       float64 `json:"network_synergy_score"`
	CulturalAlignmentScore    float64 `json:"cultural_alignment_score"`
	CommunityImpactScore      float64 `json:"community_impact_score"`

	SharedLanguages []string `json:"shared_languages"`
	// SharedRepos is reserved; repository overlap is not computed yet.
	SharedRepos     []string `json:"shared_repos"`
	SharedFollowers []string `json:"shared_followers"`
}

// ValuableInsights holds the data-driven part of a narrative
type ValuableInsights struct {
	ActivityTrends     string `json:"activity_trends"`
	RepositoryImpact   string `json:"repository_impact"`
	FollowerEngagement string `json:"follower_engagement"`
}

// Narrative is the structured reply of the narrative generator
type Narrative struct {
	MatchType                 string           `json:"match_type"`
	CompatibilitySummary      string           `json:"compatibility_summary"`
	StrengthsAndOpportunities string           `json:"strengths_and_opportunities"`
	CollaborationPlan         string           `json:"collaboration_plan"`
	MotivationalMessage       string           `json:"motivational_message"`
	ValuableInsights          ValuableInsights `json:"valuable_insights"`
}

// NarrativeRequest is what the narrative generator receives
type NarrativeRequest struct {
	Username1 string `json:"-"`
	Username2 string `json:"-"`

	CompatibilityScore        float64 `json:"compatibility_score"`
	TechnicalAlignmentScore   float64 `json:"technical_alignment_score"`
	SkillComplementarityScore float64 `json:"skill_complementarity_score"`
	ActivityMatchScore        float64 `json:"activity_match_score"`
	NetworkSynergyScore       float64 `json:"network_synergy_score"`
	CulturalAlignmentScore    float64 `json:"cultural_alignment_score"`
	CommunityImpactScore      float64 `json:"community_impact_score"`

	SharedLanguages  []string         `json:"shared_languages"`
	SharedRepos      []string         `json:"shared_repos"`
	SharedFollowers  []string         `json:"shared_followers"`
	ValuableInsights ValuableInsights `json:"valuable_insights"`
}

// CompatibilityResult is the payload returned to callers and stored in the cache
type CompatibilityResult struct {
	Narrative
	Metrics *Metrics `json:"metrics,omitempty"`
}
