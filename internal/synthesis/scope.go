package synthesis

import (
	"context"
	"strings"

	"github.com/zulandar/trendyard/internal/models"
)

// InferScope asks the model for the research scope of query. It never fails:
// unparsable output falls back to keyword sniffing, then to DefaultScope.
func (e *Engine) InferScope(ctx context.Context, query string) models.Scope {
	text, err := e.complete(ctx, "research_plan", scopeSystem, scopePrompt(query))
	if err != nil {
		return SniffScope(query)
	}

	var parsed models.Scope
	if _, err := DecodeObject(text, &parsed); err != nil {
		e.log.Debug("scope response not JSON, sniffing keywords")
		return SniffScope(text)
	}
	def := models.DefaultScope()
	if strings.TrimSpace(parsed.TimeWindow) == "" {
		parsed.TimeWindow = def.TimeWindow
	}
	if strings.TrimSpace(parsed.Region) == "" {
		parsed.Region = def.Region
	}
	if strings.TrimSpace(parsed.Domain) == "" {
		parsed.Domain = def.Domain
	}
	return parsed
}

// SniffScope derives a scope from week/month/quarter wording in text.
func SniffScope(text string) models.Scope {
	scope := models.DefaultScope()
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "week") || strings.Contains(lower, "7 days"):
		scope.TimeWindow = "last 7 days"
	case strings.Contains(lower, "quarter") || strings.Contains(lower, "3 months"):
		scope.TimeWindow = "last 3 months"
	case strings.Contains(lower, "month") || strings.Contains(lower, "30 days"):
		scope.TimeWindow = "last 30 days"
	}
	return scope
}
