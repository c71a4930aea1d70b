// Package notify posts workflow milestones to chat channels.
//
// Delivery is best effort: callers log a failed notification and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/trendyard/internal/config"
	"github.com/zulandar/trendyard/internal/models"
)

// Sidebar colors.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// maxTopics caps the topics listed in an approval notice.
const maxTopics = 3

// Notice is a channel-agnostic notification.
type Notice struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair rendered alongside the body.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Nop discards notices.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notice) error { return nil }

// Multi fans a notice out to several notifiers. Every notifier is tried; the
// errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApprovalNeeded announces research that is waiting on a decision.
func ApprovalNeeded(sessionID, query string, topics []models.TrendingTopic) Notice {
	n := Notice{
		Title: "Research ready for review",
		Body:  fmt.Sprintf("Session %s is waiting for approval.\n*Query:* %s", sessionID, firstLine(query)),
		Color: ColorWarning,
		Fields: []Field{
			{Name: "Session", Value: sessionID, Short: true},
			{Name: "Trends", Value: fmt.Sprintf("%d", len(topics)), Short: true},
		},
	}
	if len(topics) > 0 {
		var lines []string
		for i, t := range topics {
			if i == maxTopics {
				lines = append(lines, fmt.Sprintf("...and %d more", len(topics)-maxTopics))
				break
			}
			line := "- " + t.Topic
			if t.Confidence != "" {
				line += " (" + t.Confidence + ")"
			}
			lines = append(lines, line)
		}
		n.Fields = append(n.Fields, Field{Name: "Top trends", Value: strings.Join(lines, "\n")})
	}
	return n
}

// IdeasReady announces that idea generation finished.
func IdeasReady(sessionID string, ideas map[string][]string) Notice {
	platforms := make([]string, 0, len(ideas))
	for p := range ideas {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	n := Notice{
		Title: "Ideas ready",
		Body:  fmt.Sprintf("Session %s generated ideas for %d platform(s).", sessionID, len(platforms)),
		Color: ColorSuccess,
	}
	for _, p := range platforms {
		n.Fields = append(n.Fields, Field{Name: p, Value: fmt.Sprintf("%d ideas", len(ideas[p])), Short: true})
	}
	return n
}

// Text renders n as plain text for fallbacks.
func (n Notice) Text() string {
	var b strings.Builder
	b.WriteString(n.Title)
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Body)
	}
	for _, f := range n.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// FromConfig builds a notifier for every enabled channel in cfg. With none
// enabled it returns Nop.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var out Multi
	if cfg.Slack.Enabled() {
		s, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Discord.Enabled() {
		d, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return Nop{}, nil
	}
	return out, nil
}
