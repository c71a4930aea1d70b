package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/trendyard/internal/models"
)

// TopTrends returns at most limit trends. A non-positive limit keeps all.
func TopTrends(trends []models.EnrichedTrend, limit int) []models.EnrichedTrend {
	if limit > 0 && len(trends) > limit {
		return trends[:limit]
	}
	return trends
}

// WriteReport asks the model for a Markdown report over trends. When the
// model fails or returns nothing, a deterministic report is built instead.
func (e *Engine) WriteReport(ctx context.Context, query string, scope models.Scope, trends []models.EnrichedTrend, scores map[string]models.ConfidenceScore) string {
	text, err := e.complete(ctx, "research_report", reportSystem, reportPrompt(query, scope, trends, scores))
	if err == nil {
		if report := StripFences(text); report != "" {
			return report
		}
	}
	return FallbackReport(query, scope, trends, scores)
}

// FallbackReport renders trends as Markdown without the model.
func FallbackReport(query string, scope models.Scope, trends []models.EnrichedTrend, scores map[string]models.ConfidenceScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", query)
	fmt.Fprintf(&b, "_Scope: %s, %s, %s_\n\n## Top Trends\n", scope.TimeWindow, scope.Region, scope.Domain)
	if len(trends) == 0 {
		b.WriteString("\nNo trend candidates were found for this scope.\n")
		return b.String()
	}
	for i, t := range trends {
		fmt.Fprintf(&b, "\n### %d. %s\n\n", i+1, t.Title)
		fmt.Fprintf(&b, "- **Summary**: %s\n", t.Summary)
		fmt.Fprintf(&b, "- **Why it matters**: %s\n", t.WhyItMatters)
		if len(t.KeyEvidence) > 0 {
			fmt.Fprintf(&b, "- **Key Links**: %s\n", strings.Join(t.KeyEvidence, ", "))
		}
		if t.PublishedDate != "" {
			fmt.Fprintf(&b, "- **Timestamp**: %s\n", t.PublishedDate)
		}
		if s, ok := scores[TrendKey(i)]; ok {
			fmt.Fprintf(&b, "- **Confidence**: %s (%s)\n", s.Confidence, s.Rationale)
		}
	}
	return b.String()
}

// Sources returns the de-duplicated trend URLs in first-seen order.
func Sources(trends []models.EnrichedTrend) []string {
	seen := make(map[string]bool, len(trends))
	out := make([]string, 0, len(trends))
	for _, t := range trends {
		if t.URL == "" || seen[t.URL] {
			continue
		}
		seen[t.URL] = true
		out = append(out, t.URL)
	}
	return out
}

// TrendingTopics projects trends into the session-facing topic list.
func TrendingTopics(trends []models.EnrichedTrend, scores map[string]models.ConfidenceScore) []models.TrendingTopic {
	out := make([]models.TrendingTopic, len(trends))
	for i, t := range trends {
		confidence := models.ConfidenceMedium
		if s, ok := scores[TrendKey(i)]; ok {
			confidence = s.Confidence
		}
		out[i] = models.TrendingTopic{
			Topic:      t.Title,
			Reason:     t.WhyItMatters,
			URL:        t.URL,
			Timestamp:  t.PublishedDate,
			Confidence: confidence,
		}
	}
	return out
}
