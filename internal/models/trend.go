package models

import "strings"

// Source identifiers carried on candidates and enriched trends.
const (
	SourceWebSearch   = "web-search"
	SourceCommunity   = "community-discussion"
	SourceCodeHosting = "code-hosting"
)

// Confidence levels.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Scope bounds trend retrieval.
type Scope struct {
	TimeWindow string `json:"time_window"`
	Region     string `json:"region"`
	Domain     string `json:"domain"`
}

// DefaultScope is used whenever scope inference yields nothing usable.
func DefaultScope() Scope {
	return Scope{TimeWindow: "last 30 days", Region: "global", Domain: "general"}
}

// Candidate is a raw record returned by a candidate source.
type Candidate struct {
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	URL           string         `json:"url"`
	PublishedDate string         `json:"published_date"`
	Source        string         `json:"source"`
	RawData       map[string]any `json:"raw_data,omitempty"`
	Score         int            `json:"score,omitempty"`
	Comments      int            `json:"comments,omitempty"`
	Subreddit     string         `json:"subreddit,omitempty"`
}

// EnrichedTrend is a candidate augmented with synthesis output.
type EnrichedTrend struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	PublishedDate string   `json:"published_date,omitempty"`
	Score         int      `json:"score,omitempty"`
	Summary       string   `json:"summary"`
	WhyItMatters  string   `json:"why_it_matters"`
	KeyEvidence   []string `json:"key_evidence"`
}

// TrendingTopic is the session-facing view of a trend.
type TrendingTopic struct {
	Topic      string `json:"topic"`
	Reason     string `json:"reason"`
	URL        string `json:"url,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

// ConfidenceScore is the rule-based assessment of one trend.
type ConfidenceScore struct {
	Confidence string `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// PlatformKey is the case-insensitive identity of a platform name.
func PlatformKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizePlatforms trims names and drops blanks and case-insensitive
// duplicates, keeping the first spelling seen.
func NormalizePlatforms(platforms []string) []string {
	seen := make(map[string]bool, len(platforms))
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.TrimSpace(p)
		key := PlatformKey(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
