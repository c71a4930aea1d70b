package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/source"
	"github.com/zulandar/trendyard/internal/synthesis"
	"go.uber.org/zap"
)

func (e *Engine) researchPlan(ctx context.Context, st State) (State, []event.Event) {
	st.Scope = e.synth.InferScope(ctx, st.Query)
	st.ToolsToUse = source.Names(e.sources.Select())

	return st, []event.Event{event.ResearchPlanComplete{
		Scope:      st.Scope,
		ToolsToUse: st.ToolsToUse,
		Message: fmt.Sprintf("Research plan ready: %s, %s, %s using %s",
			st.Scope.TimeWindow, st.Scope.Region, st.Scope.Domain, strings.Join(st.ToolsToUse, ", ")),
	}}
}

func (e *Engine) trendRetrieval(ctx context.Context, st State) (State, []event.Event) {
	var candidates []models.Candidate
	for _, name := range st.ToolsToUse {
		src, ok := e.sources.Lookup(name)
		if !ok {
			e.log.Warn("selected source not registered", zap.String("source", name))
			continue
		}
		fetchCtx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
		got, err := src.Fetch(fetchCtx, st.Query, st.Scope, st.Platforms)
		cancel()
		if err != nil {
			e.log.Warn("source fetch failed, continuing without it",
				zap.String("session_id", st.SessionID),
				zap.String("source", name),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, got...)
	}
	st.Candidates = candidates

	events := make([]event.Event, 0, len(candidates)+1)
	for _, c := range candidates {
		events = append(events, event.TrendCandidate{Candidate: event.CandidateRef{
			Title:  c.Title,
			Source: c.Source,
			URL:    c.URL,
		}})
	}

	capped := candidates
	if len(capped) > e.enrichLimit {
		capped = capped[:e.enrichLimit]
	}
	enriched := make([]models.EnrichedTrend, 0, len(capped))
	for _, c := range capped {
		enriched = append(enriched, e.synth.Enrich(ctx, st.Query, c))
	}
	st.EnrichedTrends = enriched

	events = append(events, event.TrendRetrievalComplete{
		CandidatesCount: len(candidates),
		EnrichedCount:   len(enriched),
		Message:         fmt.Sprintf("Found %d candidates, enriched %d trends", len(candidates), len(enriched)),
		EnrichedTrends:  enriched,
	})
	return st, events
}

func (e *Engine) researchReport(ctx context.Context, st State) (State, []event.Event) {
	top := synthesis.TopTrends(st.EnrichedTrends, e.reportLimit)
	scores := e.synth.ScoreConfidence(top)
	report := e.synth.WriteReport(ctx, st.Query, st.Scope, top, scores)

	st.Research = report
	st.ResearchReport = report
	st.Sources = synthesis.Sources(top)
	st.TrendingTopics = synthesis.TrendingTopics(top, scores)
	st.ConfidenceScores = scores
	st.EnrichedTrends = top
	st.NeedsApproval = true

	return st, researchEvents(st)
}

func (e *Engine) fastResearch(ctx context.Context, st State) (State, []event.Event) {
	res := e.synth.FastResearch(ctx, st.Query, st.Platforms, st.Persona)

	st.Scope = models.DefaultScope()
	st.Research = res.Report
	st.ResearchReport = res.Report
	st.Sources = res.Sources
	st.TrendingTopics = res.TrendingTopics
	st.EnrichedTrends = res.EnrichedTrends
	st.ConfidenceScores = res.ConfidenceScores
	st.NeedsApproval = true

	return st, researchEvents(st)
}

func (e *Engine) generateIdeas(ctx context.Context, st State) (State, []event.Event) {
	ideas := make(map[string][]string, len(st.Platforms))
	events := make([]event.Event, 0, len(st.Platforms)+1)
	for _, platform := range st.Platforms {
		got := e.synth.GenerateIdeas(ctx, platform, st.Research, st.Query, st.Persona)
		ideas[platform] = got
		events = append(events, event.IdeaStream{Platform: platform, Ideas: got})
	}
	st.Ideas = ideas
	st.NeedsApproval = false

	return st, append(events, event.Complete{Ideas: ideas})
}

// researchEvents builds the research_complete / approval_required pair. Both
// carry the same payload.
func researchEvents(st State) []event.Event {
	payload := event.ResearchPayload{
		Research:         st.Research,
		ResearchReport:   st.ResearchReport,
		Sources:          st.Sources,
		TrendingTopics:   st.TrendingTopics,
		EnrichedTrends:   st.EnrichedTrends,
		ConfidenceScores: st.ConfidenceScores,
	}
	return []event.Event{
		event.ResearchComplete{ResearchPayload: payload},
		event.ApprovalRequired{
			ResearchPayload: payload,
			Message:         "Research complete. Approve to generate ideas, refine to adjust the research, or restart.",
		},
	}
}
