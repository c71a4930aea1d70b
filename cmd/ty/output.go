package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
	"golang.org/x/term"
)

// printer renders events for people on a terminal and as JSON lines
// everywhere else.
type printer struct {
	out   io.Writer
	human bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, human: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// event writes one run event.
func (p *printer) event(ev event.Event) error {
	if !p.human {
		data, err := event.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.out, "%s\n", data)
		return err
	}

	switch e := ev.(type) {
	case event.Step:
		fmt.Fprintf(p.out, "==> %s\n", e.Message)
	case event.ResearchPlanComplete:
		fmt.Fprintf(p.out, "    %s\n", e.Message)
	case event.TrendCandidate:
		fmt.Fprintf(p.out, "    + %s (%s)\n", e.Candidate.Title, e.Candidate.Source)
	case event.TrendRetrievalComplete:
		fmt.Fprintf(p.out, "    %s\n", e.Message)
	case event.ResearchComplete:
		fmt.Fprintf(p.out, "\n%s\n\n", strings.TrimSpace(e.Research))
	case event.ApprovalRequired:
		p.topics(e.TrendingTopics)
		fmt.Fprintf(p.out, "%s\n", e.Message)
	case event.IdeaStream:
		fmt.Fprintf(p.out, "\n%s\n", e.Platform)
		for i, idea := range e.Ideas {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, idea)
		}
	case event.Complete:
		fmt.Fprintf(p.out, "\nGenerated ideas for %d platform(s).\n", len(e.Ideas))
	}
	return nil
}

func (p *printer) topics(topics []models.TrendingTopic) {
	if len(topics) == 0 {
		return
	}
	fmt.Fprintln(p.out, "Trending topics:")
	for _, t := range topics {
		if t.Confidence != "" {
			fmt.Fprintf(p.out, "  - %s [%s]\n", t.Topic, t.Confidence)
		} else {
			fmt.Fprintf(p.out, "  - %s\n", t.Topic)
		}
	}
}

// value writes v as one JSON line.
func (p *printer) value(v any) error {
	return json.NewEncoder(p.out).Encode(v)
}

// session writes a session and its transcript.
func (p *printer) session(s *models.Session, msgs []models.Message) error {
	if !p.human {
		return p.value(map[string]any{"session": s, "messages": msgs})
	}

	fmt.Fprintf(p.out, "Session:   %s\n", s.SessionID)
	fmt.Fprintf(p.out, "Status:    %s\n", s.Status)
	fmt.Fprintf(p.out, "Mode:      %s\n", s.Mode)
	fmt.Fprintf(p.out, "Platforms: %s\n", strings.Join(s.Platforms, ", "))
	fmt.Fprintf(p.out, "Query:     %s\n", s.Query)
	fmt.Fprintf(p.out, "Updated:   %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	p.topics(s.TrendingTopics)

	if len(s.Ideas) > 0 {
		fmt.Fprint(p.out, ideasText(s.Ideas))
	}

	if len(msgs) > 0 {
		fmt.Fprintf(p.out, "\nTranscript (%d messages):\n", len(msgs))
		for _, m := range msgs {
			fmt.Fprintf(p.out, "  %3d %-8s %s\n", m.Sequence, m.Type, firstLine(m.Content))
		}
	}
	return nil
}

// ideasText renders ideas grouped by platform, platforms sorted.
func ideasText(ideas map[string][]string) string {
	platforms := make([]string, 0, len(ideas))
	for p := range ideas {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var b strings.Builder
	for _, platform := range platforms {
		fmt.Fprintf(&b, "\n%s\n", platform)
		for i, idea := range ideas[platform] {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, idea)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
