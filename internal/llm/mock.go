package llm

import (
	"context"
	"strings"
	"sync"
)

// Rule maps a system-prompt phrase to a canned reply.
type Rule struct {
	Contains string
	Reply    string
}

// Mock is a deterministic completer for local development and tests. The
// first rule whose phrase appears in the lowercased system prompt wins.
type Mock struct {
	mu       sync.Mutex
	rules    []Rule
	fallback string
	calls    []Call
}

// Call records one Complete invocation.
type Call struct {
	System string
	User   string
}

// NewMock returns a Mock loaded with replies shaped like real model output
// for every synthesis task.
func NewMock() *Mock {
	return &Mock{
		rules:    DefaultRules(),
		fallback: "No response configured.",
	}
}

// NewMockWithRules returns a Mock that only knows rules.
func NewMockWithRules(fallback string, rules ...Rule) *Mock {
	return &Mock{rules: rules, fallback: fallback}
}

// Model returns the mock model name.
func (m *Mock) Model() string { return "mock" }

// Complete returns the reply of the first matching rule.
func (m *Mock) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{System: system, User: user})

	lower := strings.ToLower(system)
	for _, r := range m.rules {
		if strings.Contains(lower, strings.ToLower(r.Contains)) {
			return r.Reply, nil
		}
	}
	return m.fallback, nil
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// DefaultRules returns canned replies keyed on the phrases the synthesis
// prompts use.
func DefaultRules() []Rule {
	return []Rule{
		{
			Contains: "fast mode",
			Reply: `{"research_report": "# Fast Research\n\nAudiences respond to launch stories with concrete outcomes.", ` +
				`"sources": ["https://example.com/fast-1"], ` +
				`"trending_topics": [{"topic": "Launch storytelling", "reason": "High engagement on launch posts", ` +
				`"url": "https://example.com/fast-1", "confidence": "High"}], ` +
				`"enriched_trends": [], "confidence_scores": {}}`,
		},
		{
			Contains: "research scope",
			Reply:    "```json\n{\"time_window\": \"last 30 days\", \"region\": \"global\", \"domain\": \"technology\"}\n```",
		},
		{
			Contains: "enrich",
			Reply: `{"summary": "Practitioners are discussing this trend widely.", ` +
				`"why_it_matters": "Shows where audience attention is moving right now.", ` +
				`"key_evidence": ["https://example.com/evidence-1", "https://example.com/evidence-2"]}`,
		},
		{
			Contains: "research report",
			Reply: "# Research Report\n\n## Key Trends\n\n" +
				"1. **Momentum is building** around the topic across professional networks.\n" +
				"2. **Community discussion** highlights practical adoption stories.\n\n" +
				"## Recommendations\n\nLead with concrete outcomes and a clear point of view.",
		},
		{
			Contains: "marketing copy ideas",
			Reply: "```json\n[\n" +
				"  \"Share a behind-the-scenes story of the first week after launch\",\n" +
				"  \"Post a before-and-after comparison of the workflow it replaces\",\n" +
				"  \"Ask your audience which pain point they want solved next\",\n" +
				"  \"Publish a short thread on three lessons learned while building\",\n" +
				"  \"Highlight one early customer and the result they achieved\"\n" +
				"]\n```",
		},
	}
}
