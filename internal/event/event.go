// Package event defines the typed events a workflow run emits.
//
// The set of variants is closed: every payload the engine produces is one of
// the structs below. Unknown exists only so that decoders can carry events
// from newer producers without failing.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zulandar/trendyard/internal/models"
)

// Type is the discriminator carried in the "type" field on the wire.
type Type string

const (
	TypeStep                   Type = "step"
	TypeResearchPlanComplete   Type = "research_plan_complete"
	TypeTrendCandidate         Type = "trend_candidate"
	TypeTrendRetrievalComplete Type = "trend_retrieval_complete"
	TypeResearchReportPartial  Type = "research_report_partial"
	TypeResearchComplete       Type = "research_complete"
	TypeApprovalRequired       Type = "approval_required"
	TypeIdeaStream             Type = "idea_stream"
	TypeComplete               Type = "complete"
	TypeError                  Type = "error"
)

// Stage identifiers carried by Step events.
const (
	StageResearchPlan   = "research_plan"
	StageTrendRetrieval = "trend_retrieval"
	StageResearchReport = "research_report"
	StageGenerateIdeas  = "generate_ideas"
	StageFastResearch   = "fast_research"
)

// Event is implemented by every variant.
type Event interface {
	Type() Type
	isEvent()
}

// Step marks the start of a stage.
type Step struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ResearchPlanComplete carries the inferred scope and selected tools.
type ResearchPlanComplete struct {
	Scope      models.Scope `json:"scope"`
	ToolsToUse []string     `json:"tools_to_use"`
	Message    string       `json:"message"`
}

// CandidateRef is the slice of a candidate surfaced for live progress.
type CandidateRef struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// TrendCandidate is emitted once per raw candidate.
type TrendCandidate struct {
	Candidate CandidateRef `json:"candidate"`
}

// TrendRetrievalComplete closes the retrieval stage.
type TrendRetrievalComplete struct {
	CandidatesCount int                    `json:"candidates_count"`
	EnrichedCount   int                    `json:"enriched_count"`
	Message         string                 `json:"message"`
	EnrichedTrends  []models.EnrichedTrend `json:"enriched_trends,omitempty"`
}

// ResearchReportPartial is housekeeping output from report writing. It is
// never shown as a message.
type ResearchReportPartial struct {
	Content string `json:"content"`
}

// ResearchPayload is shared by ResearchComplete and ApprovalRequired.
type ResearchPayload struct {
	Research         string                            `json:"research"`
	ResearchReport   string                            `json:"research_report"`
	Sources          []string                          `json:"sources"`
	TrendingTopics   []models.TrendingTopic            `json:"trending_topics"`
	EnrichedTrends   []models.EnrichedTrend            `json:"enriched_trends"`
	ConfidenceScores map[string]models.ConfidenceScore `json:"confidence_scores"`
}

// ResearchComplete carries the finished research report.
type ResearchComplete struct {
	ResearchPayload
}

// ApprovalRequired always follows ResearchComplete with the same payload.
type ApprovalRequired struct {
	ResearchPayload
	Message string `json:"message"`
}

// IdeaStream delivers the finished ideas for one platform.
type IdeaStream struct {
	Platform string   `json:"platform"`
	Ideas    []string `json:"ideas"`
}

// Complete carries the full platform-to-ideas map.
type Complete struct {
	Ideas map[string][]string `json:"ideas"`
}

// Error reports a stream-level failure. Only transports emit it.
type Error struct {
	Message string `json:"message"`
}

// Unknown preserves an event with an unrecognized type tag.
type Unknown struct {
	Tag Type            `json:"-"`
	Raw json.RawMessage `json:"-"`
}

func (Step) Type() Type                   { return TypeStep }
func (ResearchPlanComplete) Type() Type   { return TypeResearchPlanComplete }
func (TrendCandidate) Type() Type         { return TypeTrendCandidate }
func (TrendRetrievalComplete) Type() Type { return TypeTrendRetrievalComplete }
func (ResearchReportPartial) Type() Type  { return TypeResearchReportPartial }
func (ResearchComplete) Type() Type       { return TypeResearchComplete }
func (ApprovalRequired) Type() Type       { return TypeApprovalRequired }
func (IdeaStream) Type() Type             { return TypeIdeaStream }
func (Complete) Type() Type               { return TypeComplete }
func (Error) Type() Type                  { return TypeError }
func (u Unknown) Type() Type              { return u.Tag }

func (Step) isEvent()                   {}
func (ResearchPlanComplete) isEvent()   {}
func (TrendCandidate) isEvent()         {}
func (TrendRetrievalComplete) isEvent() {}
func (ResearchReportPartial) isEvent()  {}
func (ResearchComplete) isEvent()       {}
func (ApprovalRequired) isEvent()       {}
func (IdeaStream) isEvent()             {}
func (Complete) isEvent()               {}
func (Error) isEvent()                  {}
func (Unknown) isEvent()                {}

// Marshal encodes ev as a flat JSON object with a leading "type" field.
func Marshal(ev Event) ([]byte, error) {
	if u, ok := ev.(Unknown); ok {
		if len(u.Raw) > 0 {
			return u.Raw, nil
		}
		return json.Marshal(map[string]Type{"type": u.Tag})
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", ev.Type(), err)
	}
	tag, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", ev.Type(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if body := bytes.TrimSpace(payload); len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode parses a JSON object produced by Marshal. Unrecognized type tags
// decode to Unknown rather than failing.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("event: decode: missing type")
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case TypeStep:
		ev, err = decodeInto[Step](data)
	case TypeResearchPlanComplete:
		ev, err = decodeInto[ResearchPlanComplete](data)
	case TypeTrendCandidate:
		ev, err = decodeInto[TrendCandidate](data)
	case TypeTrendRetrievalComplete:
		ev, err = decodeInto[TrendRetrievalComplete](data)
	case TypeResearchReportPartial:
		ev, err = decodeInto[ResearchReportPartial](data)
	case TypeResearchComplete:
		ev, err = decodeInto[ResearchComplete](data)
	case TypeApprovalRequired:
		ev, err = decodeInto[ApprovalRequired](data)
	case TypeIdeaStream:
		ev, err = decodeInto[IdeaStream](data)
	case TypeComplete:
		ev, err = decodeInto[Complete](data)
	case TypeError:
		ev, err = decodeInto[Error](data)
	default:
		return Unknown{Tag: head.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("event: decode %s: %w", head.Type, err)
	}
	return ev, nil
}

func decodeInto[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
