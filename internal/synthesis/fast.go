package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/models"
)

var urlRe = regexp.MustCompile(`https?://[^\s\)]+`)

// FastResult is the single-shot research payload produced in fast mode.
type FastResult struct {
	Report           string
	Sources          []string
	TrendingTopics   []models.TrendingTopic
	EnrichedTrends   []models.EnrichedTrend
	ConfidenceScores map[string]models.ConfidenceScore
}

// FastResearch produces a complete research payload with one model call.
// Confidence stays as the model declared it, defaulting to Medium.
func (e *Engine) FastResearch(ctx context.Context, query string, platforms []string, persona models.Persona) FastResult {
	text, err := e.complete(ctx, "fast_research", fastSystem, fastPrompt(query, platforms, persona))
	if err != nil {
		text = ""
	}
	now := e.now()

	var parsed struct {
		ResearchReport   string                            `json:"research_report"`
		Sources          []string                          `json:"sources"`
		TrendingTopics   []models.TrendingTopic            `json:"trending_topics"`
		EnrichedTrends   []models.EnrichedTrend            `json:"enriched_trends"`
		ConfidenceScores map[string]models.ConfidenceScore `json:"confidence_scores"`
	}

	var res FastResult
	if _, derr := DecodeObject(text, &parsed); derr == nil {
		res = FastResult{
			Report:           parsed.ResearchReport,
			Sources:          dedupe(nonEmpty(parsed.Sources)),
			TrendingTopics:   parsed.TrendingTopics,
			EnrichedTrends:   parsed.EnrichedTrends,
			ConfidenceScores: parsed.ConfidenceScores,
		}
		if strings.TrimSpace(res.Report) == "" {
			res.Report = StripFences(text)
		}
	} else {
		res.Report = strings.TrimSpace(text)
		res.Sources = dedupe(urlRe.FindAllString(text, -1))
		res.TrendingTopics = genericTopics(res.Sources, now)
	}

	if strings.TrimSpace(res.Report) == "" {
		res.Report = fmt.Sprintf("# Research Report: %s\n\nResearch generated for %s targeting %s.",
			query, query, strings.Join(platforms, ", "))
	}
	if len(res.TrendingTopics) == 0 {
		res.TrendingTopics = []models.TrendingTopic{{
			Topic:      "Relevant trend for " + query,
			Reason:     "Identified through research",
			Timestamp:  now.Format(time.RFC3339),
			Confidence: models.ConfidenceMedium,
		}}
	}
	for i := range res.TrendingTopics {
		if res.TrendingTopics[i].Confidence == "" {
			res.TrendingTopics[i].Confidence = models.ConfidenceMedium
		}
	}
	if len(res.ConfidenceScores) == 0 {
		res.ConfidenceScores = make(map[string]models.ConfidenceScore, len(res.TrendingTopics))
		for i, t := range res.TrendingTopics {
			res.ConfidenceScores[TrendKey(i)] = models.ConfidenceScore{
				Confidence: t.Confidence,
				Rationale:  "Fast mode analysis",
			}
		}
	}
	if res.EnrichedTrends == nil {
		res.EnrichedTrends = []models.EnrichedTrend{}
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	return res
}

// genericTopics builds up to five placeholder topics, attaching scraped URLs
// where available.
func genericTopics(sources []string, now time.Time) []models.TrendingTopic {
	n := len(sources)
	if n == 0 || n > 5 {
		n = 5
	}
	topics := make([]models.TrendingTopic, n)
	for i := range topics {
		topics[i] = models.TrendingTopic{
			Topic:      fmt.Sprintf("Trend %d", i+1),
			Reason:     "Relevant trend identified in research",
			Timestamp:  now.Format(time.RFC3339),
			Confidence: models.ConfidenceMedium,
		}
		if i < len(sources) {
			topics[i].URL = sources[i]
		}
	}
	return topics
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
