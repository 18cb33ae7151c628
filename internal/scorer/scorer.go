// Package scorer derives compatibility metrics from the profiles,
// repositories and followers of two GitHub users. It performs no I/O.
package scorer

import (
	"math"
	"sort"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
)

// Weights applied to each sub-score. They sum to 0.8 and are not normalized.
const (
	WeightTechnicalAlignment   = 0.2
	WeightSkillComplementarity = 0.1
	WeightActivityMatch        = 0.1
	WeightNetworkSynergy       = 0.1
	WeightCulturalAlignment    = 0.2
	WeightCommunityImpact      = 0.1
)

// Exponents applied to sub-scores before weighting. Activity and network stay linear.
const (
	ExponentTechnicalAlignment   = 1.2
	ExponentSkillComplementarity = 1.1
	ExponentCulturalAlignment    = 1.3
	ExponentCommunityImpact      = 1.1
)

const (
	// SharedLanguageBonus is added when more than SharedLanguageBonusThreshold languages are shared.
	SharedLanguageBonus          = 2.0
	SharedLanguageBonusThreshold = 5
	// LowActivityPenalty is subtracted when the activity match is below LowActivityThreshold.
	LowActivityPenalty   = 2.0
	LowActivityThreshold = 3.0

	MinScore = 0.0
	MaxScore = 100.0
)

// Score computes the compatibility metrics for two users.
// Every formula is symmetric, so Score(a, b) equals Score(b, a).
func Score(a, b domain.Signals) *domain.Metrics {
	langA := languages(a.Repositories)
	langB := languages(b.Repositories)

	shared := intersect(langA, langB)
	unionSize := unionLen(langA, langB, len(shared))
	symmetricDiff := unionSize - len(shared)
	languageDenominator := float64(max(unionSize, 1))

	technical := float64(len(shared)) / languageDenominator * 10
	complementarity := float64(symmetricDiff) / languageDenominator * 10

	activity := balance(float64(publicRepos(a.Profile)), float64(publicRepos(b.Profile)))

	sharedFollowers := intersect(a.Followers, b.Followers)
	followerUnion := unionLen(a.Followers, b.Followers, len(sharedFollowers))
	network := float64(len(sharedFollowers)) / float64(max(followerUnion, 1)) * 10

	cultural := culturalAlignment(a.Repositories, b.Repositories)

	impact := balance(averageStars(a.Repositories), averageStars(b.Repositories))

	composite := WeightTechnicalAlignment*math.Pow(technical, ExponentTechnicalAlignment) +
		WeightSkillComplementarity*math.Pow(complementarity, ExponentSkillComplementarity) +
		WeightActivityMatch*activity +
		WeightNetworkSynergy*network +
		WeightCulturalAlignment*math.Pow(cultural, ExponentCulturalAlignment) +
		WeightCommunityImpact*math.Pow(impact, ExponentCommunityImpact)

	if len(shared) > SharedLanguageBonusThreshold {
		composite += SharedLanguageBonus
	}
	if activity < LowActivityThreshold {
		composite -= LowActivityPenalty
	}
	composite = math.Max(MinScore, math.Min(composite, MaxScore))

	return &domain.Metrics{
		CompatibilityScore:        round2(composite),
		TechnicalAlignmentScore:   round2(technical),
		SkillComplementarityScore: round2(complementarity),
		ActivityMatchScore:        round2(activity),
		NetworkSynergyScore:       round2(network),
		CulturalAlignmentScore:    round2(cultural),
		CommunityImpactScore:      round2(impact),
		SharedLanguages:           sortedKeys(shared),
		SharedRepos:               []string{},
		SharedFollowers:           sortedKeys(sharedFollowers),
	}
}

// balance returns min(x, y) / max(x, y, 1) scaled to 0..10.
// Identical values score 10; the score falls towards 0 as they diverge.
func balance(x, y float64) float64 {
	lo, hi := math.Min(x, y), math.Max(math.Max(x, y), 1)
	return lo * 10 / hi
}

// culturalAlignment counts every (repoA, repoB) pair whose topic sets intersect.
// The count is not deduplicated per repository.
func culturalAlignment(reposA, reposB []*domain.RepositorySummary) float64 {
	matches := 0
	for _, ra := range reposA {
		if ra == nil || len(ra.Topics) == 0 {
			continue
		}
		topics := make(map[string]struct{}, len(ra.Topics))
		for _, t := range ra.Topics {
			topics[t] = struct{}{}
		}
		for _, rb := range reposB {
			if rb == nil {
				continue
			}
			for _, t := range rb.Topics {
				if _, ok := topics[t]; ok {
					matches++
					break
				}
			}
		}
	}
	return float64(matches) / float64(max(len(reposA), len(reposB), 1)) * 10
}

func averageStars(repos []*domain.RepositorySummary) float64 {
	if len(repos) == 0 {
		return 0
	}
	total := 0
	for _, r := range repos {
		if r != nil {
			total += r.StargazersCount
		}
	}
	return float64(total) / float64(len(repos))
}

func publicRepos(p *domain.Profile) int {
	if p == nil {
		return 0
	}
	return p.PublicRepos
}

func languages(repos []*domain.RepositorySummary) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range repos {
		if r != nil && r.HasLanguage() {
			set[*r.Language] = struct{}{}
		}
	}
	return set
}

func intersect[S ~map[string]struct{}](a, b S) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func unionLen[S ~map[string]struct{}](a, b S, shared int) int {
	return len(a) + len(b) - shared
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
