package synthesis

import (
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/models"
)

// EngagementThreshold is the popularity score above which a community or
// code-hosting trend counts as highly engaged.
const EngagementThreshold = 100

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ScoreConfidence rates each trend by source quality, recency and evidence
// count. Keys are TrendKey(i) for the i-th trend.
func (e *Engine) ScoreConfidence(trends []models.EnrichedTrend) map[string]models.ConfidenceScore {
	return ScoreConfidenceAt(e.now(), trends)
}

// ScoreConfidenceAt is ScoreConfidence with an explicit clock.
func ScoreConfidenceAt(now time.Time, trends []models.EnrichedTrend) map[string]models.ConfidenceScore {
	scores := make(map[string]models.ConfidenceScore, len(trends))
	for i, t := range trends {
		scores[TrendKey(i)] = scoreTrend(now, t)
	}
	return scores
}

func scoreTrend(now time.Time, t models.EnrichedTrend) models.ConfidenceScore {
	var factors []string

	switch t.Source {
	case models.SourceWebSearch:
		factors = append(factors, "high-quality source")
	case models.SourceCommunity:
		if t.Score > EngagementThreshold {
			factors = append(factors, "high engagement")
		} else {
			factors = append(factors, "moderate engagement")
		}
	case models.SourceCodeHosting:
		if t.Score > EngagementThreshold {
			factors = append(factors, "popular repository")
		} else {
			factors = append(factors, "emerging repository")
		}
	}

	if published, ok := parseDate(t.PublishedDate); ok {
		age := now.Sub(published)
		switch {
		case age <= 7*24*time.Hour:
			factors = append(factors, "Very recent (within 7 days)")
		case age <= 30*24*time.Hour:
			factors = append(factors, "Recent (within 30 days)")
		}
	}

	level := models.ConfidenceLow
	switch n := len(t.KeyEvidence); {
	case n >= 2:
		factors = append(factors, "Multiple supporting sources")
		level = models.ConfidenceHigh
	case n == 1:
		factors = append(factors, "Single supporting source")
		level = models.ConfidenceMedium
	}

	rationale := "Standard trend analysis"
	if len(factors) > 0 {
		rationale = strings.Join(factors, "; ")
	}
	return models.ConfidenceScore{Confidence: level, Rationale: rationale}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
