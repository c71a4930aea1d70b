package workflow

import "github.com/zulandar/trendyard/internal/models"

// State accumulates the results of a run's stages.
type State struct {
	SessionID    string
	Query        string
	Platforms    []string
	Persona      models.Persona
	Mode         models.Mode
	IsRefinement bool

	Scope      models.Scope
	ToolsToUse []string

	Candidates     []models.Candidate
	EnrichedTrends []models.EnrichedTrend

	Research         string
	ResearchReport   string
	Sources          []string
	TrendingTopics   []models.TrendingTopic
	ConfidenceScores map[string]models.ConfidenceScore

	Ideas map[string][]string

	NeedsApproval bool
	Approved      bool
}
