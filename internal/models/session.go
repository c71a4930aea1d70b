package models

import "time"

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusResearching     Status = "researching"
	StatusWaitingApproval Status = "waiting_approval"
	StatusGenerating      Status = "generating"
	StatusComplete        Status = "complete"
)

// Rank orders statuses along the forward path. Unknown statuses rank 0.
func (s Status) Rank() int {
	switch s {
	case StatusResearching:
		return 1
	case StatusWaitingApproval:
		return 2
	case StatusGenerating:
		return 3
	case StatusComplete:
		return 4
	}
	return 0
}

// Persona biases prompt framing.
type Persona string

const (
	PersonaNone    Persona = ""
	PersonaAuthor  Persona = "author"
	PersonaFounder Persona = "founder"
)

// Valid reports whether p is empty or a known persona.
func (p Persona) Valid() bool {
	return p == PersonaNone || p == PersonaAuthor || p == PersonaFounder
}

// Mode selects the execution path of a workflow run.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFast || m == ModeDeep
}

// Session is the durable record of one user conversation.
type Session struct {
	SessionID      string              `gorm:"primaryKey;size:64" json:"session_id"`
	Query          string              `gorm:"type:text" json:"query"`
	Platforms      []string            `gorm:"serializer:json;type:text" json:"platforms"`
	Persona        Persona             `gorm:"size:16" json:"persona,omitempty"`
	Mode           Mode                `gorm:"size:8;default:deep" json:"mode"`
	Status         Status              `gorm:"size:24;index" json:"status"`
	Research       string              `gorm:"type:text" json:"research,omitempty"`
	Sources        []string            `gorm:"serializer:json;type:text" json:"sources,omitempty"`
	TrendingTopics []TrendingTopic     `gorm:"serializer:json;type:text" json:"trending_topics,omitempty"`
	Ideas          map[string][]string `gorm:"serializer:json;type:text" json:"ideas,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	out.Platforms = append([]string(nil), s.Platforms...)
	out.Sources = append([]string(nil), s.Sources...)
	out.TrendingTopics = append([]TrendingTopic(nil), s.TrendingTopics...)
	if s.Ideas != nil {
		out.Ideas = make(map[string][]string, len(s.Ideas))
		for k, v := range s.Ideas {
			out.Ideas[k] = append([]string(nil), v...)
		}
	}
	return out
}

// After returns now, or the instant just past prev when now does not move
// forward. Session and message timestamps advance through it.
func After(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}
