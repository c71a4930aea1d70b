package synthesis

import (
	"context"
	"strings"

	"github.com/zulandar/trendyard/internal/models"
)

// Enrich asks the model to summarize a candidate. Failures fall back to an
// enrichment built from the candidate's own title and URL.
func (e *Engine) Enrich(ctx context.Context, query string, c models.Candidate) models.EnrichedTrend {
	trend := FallbackEnrichment(c)

	text, err := e.complete(ctx, "trend_retrieval", enrichSystem, enrichPrompt(query, c))
	if err != nil {
		return trend
	}
	var parsed struct {
		Summary      string   `json:"summary"`
		WhyItMatters string   `json:"why_it_matters"`
		KeyEvidence  []string `json:"key_evidence"`
	}
	if _, err := DecodeObject(text, &parsed); err != nil {
		return trend
	}
	if s := strings.TrimSpace(parsed.Summary); s != "" {
		trend.Summary = s
	}
	if w := strings.TrimSpace(parsed.WhyItMatters); w != "" {
		trend.WhyItMatters = w
	}
	if parsed.KeyEvidence != nil {
		trend.KeyEvidence = nonEmpty(parsed.KeyEvidence)
	}
	return trend
}

// FallbackEnrichment derives an enrichment without the model.
func FallbackEnrichment(c models.Candidate) models.EnrichedTrend {
	var evidence []string
	if c.URL != "" {
		evidence = []string{c.URL}
	}
	return models.EnrichedTrend{
		Title:         c.Title,
		URL:           c.URL,
		Source:        c.Source,
		PublishedDate: c.PublishedDate,
		Score:         c.Score,
		Summary:       c.Title,
		WhyItMatters:  "Relevant trend for marketing",
		KeyEvidence:   evidence,
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
