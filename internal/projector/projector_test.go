package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
)

var t0 = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newSession() models.Session {
	return models.Session{
		SessionID: "s1",
		Query:     "Launch of an AI notebook app",
		Platforms: []string{"LinkedIn", "X"},
		Status:    models.StatusResearching,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestApply_SuppressedEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   event.Event
	}{
		{"research plan", event.ResearchPlanComplete{Scope: models.DefaultScope(), ToolsToUse: []string{"web-search"}}},
		{"partial report", event.ResearchReportPartial{Content: "draft"}},
		{"error", event.Error{Message: "boom"}},
		{"unknown", event.Unknown{Tag: "future_event"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession()
			res := Apply(s, tt.ev, t0.Add(time.Second))
			assert.False(t, res.Changed)
			assert.Nil(t, res.Message)
			assert.Equal(t, s, res.Session)
		})
	}
}

func TestApply_StepMessage(t *testing.T) {
	res := Apply(newSession(), event.Step{Step: event.StageResearchPlan, Message: "Planning..."}, t0.Add(time.Second))
	require.NotNil(t, res.Message)
	assert.Equal(t, models.MessageStep, res.Message.Type)
	assert.Equal(t, "Planning...", res.Message.Content)
	assert.Equal(t, "s1", res.Message.SessionID)
	assert.JSONEq(t, `{"type":"step","step":"research_plan","message":"Planning..."}`, string(res.Message.Metadata))
	assert.False(t, res.Changed)
}

func TestApply_TrendCandidateAccrual(t *testing.T) {
	s := newSession()
	now := t0.Add(time.Second)

	first := event.TrendCandidate{Candidate: event.CandidateRef{Title: "Notebook apps surge", Source: "web-search", URL: "https://a.example/1"}}
	res := Apply(s, first, now)
	require.True(t, res.Changed)
	assert.Nil(t, res.Message)
	require.Len(t, res.Session.TrendingTopics, 1)
	assert.Contains(t, res.Session.Research, "Research in progress")
	assert.Contains(t, res.Session.Research, "[Notebook apps surge](https://a.example/1)")
	assert.Equal(t, now, res.Session.UpdatedAt)

	sameURL := event.TrendCandidate{Candidate: event.CandidateRef{Title: "Different title", URL: "https://a.example/1"}}
	again := Apply(res.Session, sameURL, now.Add(time.Second))
	assert.False(t, again.Changed)
	assert.Len(t, again.Session.TrendingTopics, 1)

	sameTopic := event.TrendCandidate{Candidate: event.CandidateRef{Title: "Notebook apps surge", URL: "https://b.example/2"}}
	again = Apply(res.Session, sameTopic, now.Add(time.Second))
	assert.False(t, again.Changed)

	second := event.TrendCandidate{Candidate: event.CandidateRef{Title: "Thread on notebooks", Source: "community-discussion", URL: "https://b.example/2"}}
	again = Apply(res.Session, second, now.Add(time.Second))
	assert.True(t, again.Changed)
	assert.Len(t, again.Session.TrendingTopics, 2)
	assert.Contains(t, again.Session.Research, "Collected 2 trend candidate(s)")
}

func TestApply_RetrievalCompletePromotesEnrichedTrends(t *testing.T) {
	s := newSession()
	s.TrendingTopics = []models.TrendingTopic{{Topic: "raw", URL: "https://raw"}}

	ev := event.TrendRetrievalComplete{
		CandidatesCount: 2,
		EnrichedCount:   1,
		Message:         "Found 2 candidates, enriched 1 trends",
		EnrichedTrends: []models.EnrichedTrend{
			{Title: "Enriched", URL: "https://e", WhyItMatters: "because", PublishedDate: "2025-06-14"},
		},
	}
	res := Apply(s, ev, t0.Add(time.Second))
	assert.True(t, res.Changed)
	assert.Equal(t, []models.TrendingTopic{{Topic: "Enriched", Reason: "because", URL: "https://e", Timestamp: "2025-06-14"}}, res.Session.TrendingTopics)
	require.NotNil(t, res.Message)
	assert.Equal(t, models.MessageStep, res.Message.Type)

	withoutTrends := Apply(s, event.TrendRetrievalComplete{Message: "none"}, t0.Add(time.Second))
	assert.False(t, withoutTrends.Changed)
	assert.Equal(t, s.TrendingTopics, withoutTrends.Session.TrendingTopics)
}

func TestApply_ResearchPair(t *testing.T) {
	payload := event.ResearchPayload{
		Research:       "# Report",
		ResearchReport: "# Report",
		Sources:        []string{"https://a"},
		TrendingTopics: []models.TrendingTopic{{Topic: "A", Reason: "r"}},
	}
	res := Apply(newSession(), event.ResearchComplete{ResearchPayload: payload}, t0.Add(time.Second))
	assert.Equal(t, models.StatusWaitingApproval, res.Session.Status)
	assert.Equal(t, "# Report", res.Session.Research)
	assert.Equal(t, []string{"https://a"}, res.Session.Sources)
	require.NotNil(t, res.Message)
	assert.Equal(t, models.MessageResearch, res.Message.Type)

	res = Apply(res.Session, event.ApprovalRequired{ResearchPayload: payload, Message: "Approve?"}, t0.Add(2*time.Second))
	assert.Equal(t, models.StatusWaitingApproval, res.Session.Status)
	assert.False(t, res.Changed)
	require.NotNil(t, res.Message)
	assert.Equal(t, models.MessageApproval, res.Message.Type)
	assert.Equal(t, "Approve?", res.Message.Content)
}

func TestApply_IdeaStreamIsIdempotent(t *testing.T) {
	s := newSession()
	s.Status = models.StatusGenerating
	ev := event.IdeaStream{Platform: "LinkedIn", Ideas: []string{
		"```json\n[\"Share the launch story with early users\",\n",
		",",
		"Post a teardown of the onboarding flow",
	}}

	once := Apply(s, ev, t0.Add(time.Second))
	twice := Apply(once.Session, ev, t0.Add(2*time.Second))

	want := []string{"Share the launch story with early users", "Post a teardown of the onboarding flow"}
	assert.Equal(t, want, once.Session.Ideas["LinkedIn"])
	assert.Equal(t, once.Session.Ideas, twice.Session.Ideas)
	require.NotNil(t, once.Message)
	assert.Equal(t, models.MessageIdea, once.Message.Type)
	assert.Equal(t, "LinkedIn", once.Message.Platform)
	assert.Equal(t, want, once.Message.Ideas)
}

func TestApply_IdeaStreamReplacesCaseInsensitively(t *testing.T) {
	s := newSession()
	s.Ideas = map[string][]string{
		"linkedin": {"An older idea for linkedin"},
		"X":        {"An idea for X that stays"},
	}
	res := Apply(s, event.IdeaStream{Platform: "LinkedIn", Ideas: []string{"A brand new idea for LinkedIn"}}, t0.Add(time.Second))

	assert.Equal(t, map[string][]string{
		"LinkedIn": {"A brand new idea for LinkedIn"},
		"X":        {"An idea for X that stays"},
	}, res.Session.Ideas)
	assert.Equal(t, []string{"An older idea for linkedin"}, s.Ideas["linkedin"], "input mutated")
}

func TestApply_StatusNeverRegresses(t *testing.T) {
	order := []models.Status{
		models.StatusResearching,
		models.StatusWaitingApproval,
		models.StatusGenerating,
		models.StatusComplete,
	}
	events := []event.Event{
		event.ResearchComplete{},
		event.ApprovalRequired{},
		event.IdeaStream{Platform: "X", Ideas: []string{"A perfectly reasonable idea"}},
		event.Complete{Ideas: map[string][]string{"X": {"A perfectly reasonable idea"}}},
	}
	for _, start := range order {
		for _, ev := range events {
			s := newSession()
			s.Status = start
			res := Apply(s, ev, t0.Add(time.Second))
			assert.GreaterOrEqual(t, res.Session.Status.Rank(), start.Rank(), "%s after %s", start, ev.Type())
		}
	}

	s := newSession()
	s.Status = models.StatusComplete
	res := Apply(s, event.IdeaStream{Platform: "X", Ideas: []string{"A late idea that arrives after completion"}}, t0.Add(time.Second))
	assert.Equal(t, models.StatusComplete, res.Session.Status)
}

func TestApply_CompleteSanitizesAllPlatforms(t *testing.T) {
	s := newSession()
	s.Status = models.StatusGenerating
	s.Ideas = map[string][]string{"x": {"Stale idea for the X platform"}}

	ev := event.Complete{Ideas: map[string][]string{
		"LinkedIn": {"\"Quoted idea about the launch week\",", "]"},
		"X":        {"Thread: three lessons from launch"},
	}}
	res := Apply(s, ev, t0.Add(time.Second))

	assert.Equal(t, models.StatusComplete, res.Session.Status)
	assert.Equal(t, map[string][]string{
		"LinkedIn": {"Quoted idea about the launch week"},
		"X":        {"Thread: three lessons from launch"},
	}, res.Session.Ideas)
	require.NotNil(t, res.Message)
	assert.Equal(t, models.MessageSystem, res.Message.Type)
}

func TestApply_UpdatedAtAlwaysAdvances(t *testing.T) {
	s := newSession()
	s.UpdatedAt = t0.Add(time.Hour)

	res := Apply(s, event.ResearchComplete{}, t0)
	assert.True(t, res.Session.UpdatedAt.After(s.UpdatedAt))

	unchanged := Apply(s, event.Step{Message: "x"}, t0.Add(2*time.Hour))
	assert.Equal(t, s.UpdatedAt, unchanged.Session.UpdatedAt)
}
