package models

import (
	"time"

	"gorm.io/datatypes"
)

// PendingApproval holds the most recent research artifact awaiting a human
// decision. There is at most one row per session; each write replaces it.
type PendingApproval struct {
	SessionID        string                                         `gorm:"primaryKey;size:64" json:"session_id"`
	Research         string                                         `gorm:"type:text" json:"research"`
	ResearchReport   string                                         `gorm:"type:text" json:"research_report"`
	Sources          []string                                       `gorm:"serializer:json;type:text" json:"sources"`
	TrendingTopics   []TrendingTopic                                `gorm:"serializer:json;type:text" json:"trending_topics"`
	EnrichedTrends   datatypes.JSONType[[]EnrichedTrend]            `json:"enriched_trends"`
	ConfidenceScores datatypes.JSONType[map[string]ConfidenceScore] `json:"confidence_scores"`
	Scope            Scope                                          `gorm:"serializer:json;type:text" json:"scope"`
	Platforms        []string                                       `gorm:"serializer:json;type:text" json:"platforms"`
	OriginalQuery    string                                         `gorm:"type:text" json:"original_query"`
	Persona          Persona                                        `gorm:"size:16" json:"persona,omitempty"`
	Mode             Mode                                           `gorm:"size:8" json:"mode"`
	Approved         bool                                           `gorm:"default:false" json:"approved"`
	NeedsRefinement  bool                                           `gorm:"default:false" json:"needs_refinement"`
	CreatedAt        time.Time                                      `gorm:"index" json:"created_at"`
}
