package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(true)
	table.SetColWidth(70)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printResult(w io.Writer, user1, user2 string, result *domain.CompatibilityResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, result)
	}

	fmt.Fprintf(w, "\nCompatibility: %s & %s\n", user1, user2)
	fmt.Fprintf(w, "%s\n\n", result.MatchType)

	if result.Metrics != nil {
		renderMetrics(w, result.Metrics)
		fmt.Fprintln(w)
	}

	table := newTable(w, "Section", "Insight")
	table.Append([]string{"Summary", result.CompatibilitySummary})
	table.Append([]string{"Strengths & Opportunities", result.StrengthsAndOpportunities})
	table.Append([]string{"Collaboration Plan", result.CollaborationPlan})
	table.Append([]string{"Activity Trends", result.ValuableInsights.ActivityTrends})
	table.Append([]string{"Repository Impact", result.ValuableInsights.RepositoryImpact})
	table.Append([]string{"Follower Engagement", result.ValuableInsights.FollowerEngagement})
	table.Render()

	fmt.Fprintf(w, "\n%s\n", result.MotivationalMessage)
	return nil
}

func printMetrics(w io.Writer, user1, user2 string, m *domain.Metrics, asJSON bool) error {
	if asJSON {
		return printJSON(w, m)
	}
	fmt.Fprintf(w, "\nCompatibility Scores: %s & %s\n\n", user1, user2)
	renderMetrics(w, m)
	return nil
}

func renderMetrics(w io.Writer, m *domain.Metrics) {
	table := newTable(w, "Metric", "Value")
	table.Append([]string{"Compatibility", formatScore(m.CompatibilityScore)})
	table.Append([]string{"Technical Alignment", formatScore(m.TechnicalAlignmentScore)})
	table.Append([]string{"Skill Complementarity", formatScore(m.SkillComplementarityScore)})
	table.Append([]string{"Activity Match", formatScore(m.ActivityMatchScore)})
	table.Append([]string{"Network Synergy", formatScore(m.NetworkSynergyScore)})
	table.Append([]string{"Cultural Alignment", formatScore(m.CulturalAlignmentScore)})
	table.Append([]string{"Community Impact", formatScore(m.CommunityImpactScore)})
	table.Append([]string{"Shared Languages", joinOrDash(m.SharedLanguages)})
	table.Append([]string{"Shared Followers", joinOrDash(m.SharedFollowers)})
	table.Render()
}

func printCacheEntry(w io.Writer, entry *domain.CacheEntry, fresh bool, ttl time.Duration, asJSON bool) error {
	if asJSON {
		return printJSON(w, map[string]any{
			"pair_key":  entry.PairKey,
			"timestamp": entry.Timestamp.UTC().Format(time.RFC3339),
			"fresh":     fresh,
			"results":   json.RawMessage(entry.Results),
		})
	}

	state := "stale"
	if fresh {
		state = "fresh"
	}

	table := newTable(w, "Field", "Value")
	table.Append([]string{"Pair Key", entry.PairKey})
	table.Append([]string{"Stored At", entry.Timestamp.UTC().Format(time.RFC3339)})
	table.Append([]string{"Expires At", entry.Timestamp.Add(ttl).UTC().Format(time.RFC3339)})
	table.Append([]string{"State", state})
	table.Append([]string{"Payload Size", fmt.Sprintf("%d bytes", len(entry.Results))})
	table.Render()
	return nil
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
