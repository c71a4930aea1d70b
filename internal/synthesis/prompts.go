package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zulandar/trendyard/internal/models"
)

const (
	scopeSystem = "You are a research planner. Infer the research scope of a marketing query. " +
		`Respond with JSON only: {"time_window": "...", "region": "...", "domain": "..."}.`

	enrichSystem = "You enrich a single trend candidate for a marketing team. " +
		`Respond with JSON only: {"summary": "1-2 sentences", "why_it_matters": "marketing relevance", ` +
		`"key_evidence": ["supporting URLs"]}.`

	reportSystem = "You are a research report writer. Create clear, structured, reviewable Markdown reports."

	fastSystem = "You are a fast mode research assistant. In a single pass, research the query and " +
		"return one JSON object with keys research_report (Markdown), sources (URLs), trending_topics " +
		"(objects with topic, reason, url, timestamp, confidence), enriched_trends and confidence_scores " +
		"(keyed trend_0, trend_1, ... with confidence High/Medium/Low and rationale)."
)

// personaFraming returns a sentence that biases tone toward the persona.
func personaFraming(p models.Persona) string {
	switch p {
	case models.PersonaAuthor:
		return "Write in the voice of an author building a readership: personal, reflective, story-led."
	case models.PersonaFounder:
		return "Write in the voice of a startup founder: direct, outcome-focused, building in public."
	}
	return ""
}

func scopePrompt(query string) string {
	return fmt.Sprintf("Query: %s\n\nWhat time window, region and domain should trend research cover?", query)
}

func enrichPrompt(query string, c models.Candidate) string {
	content := c.Content
	if len(content) > 1000 {
		content = content[:1000]
	}
	return fmt.Sprintf("Query: %s\n\nCandidate title: %s\nURL: %s\nSource: %s\nContent: %s",
		query, c.Title, c.URL, c.Source, content)
}

type reportTrend struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	URL        string `json:"url"`
	Confidence string `json:"confidence,omitempty"`
}

func reportPrompt(query string, scope models.Scope, trends []models.EnrichedTrend, scores map[string]models.ConfidenceScore) string {
	rows := make([]reportTrend, len(trends))
	for i, t := range trends {
		rows[i] = reportTrend{Title: t.Title, Summary: t.Summary, URL: t.URL}
		if s, ok := scores[TrendKey(i)]; ok {
			rows[i].Confidence = s.Confidence + " - " + s.Rationale
		}
	}
	listing, _ := json.MarshalIndent(rows, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Create a comprehensive research report for: %s\n\n", query)
	fmt.Fprintf(&b, "Scope: %s, %s, %s\n\n", scope.TimeWindow, scope.Region, scope.Domain)
	fmt.Fprintf(&b, "Trends to include (top %d):\n%s\n\n", len(trends), listing)
	fmt.Fprintf(&b, "Format the report as:\n# Research Report: %s\n\n## Top Trends\n\n", query)
	b.WriteString("For each trend include title, summary, why it matters, key links, timestamp and confidence with rationale.\n")
	b.WriteString("Make it clear, reviewable, and actionable.")
	return b.String()
}

func ideasSystem(platform string, persona models.Persona) string {
	s := fmt.Sprintf("You are a %s marketing copy expert. Generate creative, platform-specific marketing copy ideas.", platform)
	if f := personaFraming(persona); f != "" {
		s += " " + f
	}
	return s
}

func ideasPrompt(platform, research, query string) string {
	return fmt.Sprintf("Based on this research:\n%s\n\nOriginal request: %s\n\n"+
		"Generate 5 creative marketing copy ideas for %s that are platform-appropriate, "+
		"engaging and tied to the trends above.\n\nReturn ONLY a JSON array of 5 strings.",
		research, query, platform)
}

func fastPrompt(query string, platforms []string, persona models.Persona) string {
	s := fmt.Sprintf("Query: %s\nTarget platforms: %s", query, strings.Join(platforms, ", "))
	if f := personaFraming(persona); f != "" {
		s += "\n" + f
	}
	return s
}

// TrendKey is the confidence-score key for the i-th reported trend.
func TrendKey(i int) string {
	return fmt.Sprintf("trend_%d", i)
}
