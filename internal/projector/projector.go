// Package projector folds workflow events into session state and transcript
// messages.
//
// Apply is pure: it takes the current session and one event and returns the
// next session plus at most one message to append. Persisting the result is
// the caller's job.
package projector

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/synthesis"
	"gorm.io/datatypes"
)

// Result is the outcome of applying one event.
type Result struct {
	Session models.Session
	// Changed reports whether any session field was mutated.
	Changed bool
	// Message is the transcript entry for the event, if it has one. Sequence
	// is left for the store to assign.
	Message *models.Message
}

// Apply projects ev onto s. The input session is never modified.
func Apply(s models.Session, ev event.Event, now time.Time) Result {
	p := &projection{next: s.Clone(), now: now}

	switch e := ev.(type) {
	case event.Step:
		p.message(models.MessageStep, e.Message, ev)

	case event.TrendCandidate:
		p.accrueCandidate(e.Candidate)

	case event.TrendRetrievalComplete:
		if len(e.EnrichedTrends) > 0 {
			p.next.TrendingTopics = topicsFromTrends(e.EnrichedTrends)
			p.changed = true
		}
		p.message(models.MessageStep, e.Message, ev)

	case event.ResearchComplete:
		p.next.Research = e.Research
		p.next.Sources = append([]string(nil), e.Sources...)
		p.next.TrendingTopics = append([]models.TrendingTopic(nil), e.TrendingTopics...)
		p.changed = true
		p.advance(models.StatusWaitingApproval)
		p.message(models.MessageResearch, e.Research, ev)

	case event.ApprovalRequired:
		p.advance(models.StatusWaitingApproval)
		p.message(models.MessageApproval, e.Message, ev)

	case event.IdeaStream:
		ideas := synthesis.CleanIdeas(e.Ideas)
		p.replaceIdeas(e.Platform, ideas)
		p.advance(models.StatusGenerating)
		msg := p.message(models.MessageIdea, fmt.Sprintf("Ideas for %s", e.Platform), ev)
		msg.Platform = e.Platform
		msg.Ideas = ideas

	case event.Complete:
		for platform, raw := range e.Ideas {
			p.replaceIdeas(platform, synthesis.CleanIdeas(raw))
		}
		p.advance(models.StatusComplete)
		p.message(models.MessageSystem, fmt.Sprintf("Generated ideas for %d platform(s).", len(e.Ideas)), ev)

	default:
		// research_plan_complete, research_report_partial, error and
		// unknown events leave no trace.
	}

	if p.changed {
		p.next.UpdatedAt = models.After(s.UpdatedAt, now)
	}
	return Result{Session: p.next, Changed: p.changed, Message: p.msg}
}

type projection struct {
	next    models.Session
	now     time.Time
	changed bool
	msg     *models.Message
}

func (p *projection) message(typ models.MessageType, content string, ev event.Event) *models.Message {
	p.msg = &models.Message{
		SessionID: p.next.SessionID,
		Type:      typ,
		Content:   content,
		Metadata:  metadata(ev),
		Timestamp: p.now,
	}
	return p.msg
}

// advance moves status forward. It never moves it back.
func (p *projection) advance(to models.Status) {
	if to.Rank() > p.next.Status.Rank() {
		p.next.Status = to
		p.changed = true
	}
}

// replaceIdeas sets the ideas for platform, replacing any key that names the
// same platform in a different case.
func (p *projection) replaceIdeas(platform string, ideas []string) {
	if p.next.Ideas == nil {
		p.next.Ideas = make(map[string][]string)
	}
	key := models.PlatformKey(platform)
	for existing := range p.next.Ideas {
		if models.PlatformKey(existing) == key && existing != platform {
			delete(p.next.Ideas, existing)
		}
	}
	p.next.Ideas[platform] = ideas
	p.changed = true
}

func (p *projection) accrueCandidate(c event.CandidateRef) {
	topic := strings.TrimSpace(c.Title)
	if topic == "" && c.URL == "" {
		return
	}
	for _, t := range p.next.TrendingTopics {
		if (c.URL != "" && t.URL == c.URL) || (topic != "" && t.Topic == topic) {
			return
		}
	}
	p.next.TrendingTopics = append(p.next.TrendingTopics, models.TrendingTopic{
		Topic:  topic,
		Reason: "Surfaced by " + c.Source,
		URL:    c.URL,
	})
	p.next.Research = PartialResearch(p.next.TrendingTopics)
	p.changed = true
}

// PartialResearch renders the candidates gathered so far as Markdown.
func PartialResearch(topics []models.TrendingTopic) string {
	var b strings.Builder
	b.WriteString("## Research in progress\n\n")
	fmt.Fprintf(&b, "Collected %d trend candidate(s) so far:\n\n", len(topics))
	for i, t := range topics {
		if t.URL != "" {
			fmt.Fprintf(&b, "%d. [%s](%s)", i+1, t.Topic, t.URL)
		} else {
			fmt.Fprintf(&b, "%d. %s", i+1, t.Topic)
		}
		if t.Reason != "" {
			fmt.Fprintf(&b, " (%s)", t.Reason)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func topicsFromTrends(trends []models.EnrichedTrend) []models.TrendingTopic {
	out := make([]models.TrendingTopic, len(trends))
	for i, t := range trends {
		out[i] = models.TrendingTopic{
			Topic:     t.Title,
			Reason:    t.WhyItMatters,
			URL:       t.URL,
			Timestamp: t.PublishedDate,
		}
	}
	return out
}

func metadata(ev event.Event) datatypes.JSON {
	data, err := event.Marshal(ev)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
