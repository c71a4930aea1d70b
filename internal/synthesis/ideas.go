package synthesis

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/trendyard/internal/models"
)

const (
	// IdeasPerPlatform caps the ideas kept for one platform.
	IdeasPerPlatform = 5

	// MinIdeaLength is the noise floor: ideas of this many characters or
	// fewer are discarded.
	MinIdeaLength = 10
)

var (
	punctuationOnlyRe = regexp.MustCompile(`^[\s\p{P}\p{S}]*$`)
	listMarkerRe      = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
)

// GenerateIdeas asks the model for ideas for one platform and returns at
// most IdeasPerPlatform cleaned strings.
func (e *Engine) GenerateIdeas(ctx context.Context, platform, research, query string, persona models.Persona) []string {
	text, err := e.complete(ctx, "generate_ideas", ideasSystem(platform, persona), ideasPrompt(platform, research, query))
	if err != nil {
		return []string{}
	}
	return ParseIdeas(text)
}

// ParseIdeas extracts ideas from a model response. A JSON array is preferred;
// otherwise the text is split into lines and noise lines are dropped.
func ParseIdeas(text string) []string {
	var items []json.RawMessage
	if _, err := DecodeArray(text, &items); err == nil {
		if ideas := CleanIdeas(rawIdeas(items)); len(ideas) > 0 {
			return limit(ideas, IdeasPerPlatform)
		}
	}

	var lines []string
	for _, line := range strings.Split(StripFences(text), "\n") {
		lines = append(lines, listMarkerRe.ReplaceAllString(line, ""))
	}
	ideas := CleanIdeas(lines)
	if len(ideas) == 0 {
		// Keep a truncated copy of an unstructured reply rather than nothing.
		if s := truncateRunes(SanitizeIdea(text), 200); !IsNoise(s) {
			ideas = []string{s}
		}
	}
	return limit(ideas, IdeasPerPlatform)
}

// rawIdeas accepts arrays of strings or of objects with a text-like field.
func rawIdeas(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for _, key := range []string{"idea", "text", "copy", "content"} {
			if v, ok := obj[key].(string); ok {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// SanitizeIdea strips code fences, surrounding JSON array/quote/comma noise
// and unescapes quotes and newlines.
func SanitizeIdea(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.Trim(s, " \t\r\n[]\"',")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return strings.TrimSpace(s)
}

// IsNoise reports whether a sanitized idea is too short or punctuation only.
func IsNoise(s string) bool {
	return utf8.RuneCountInString(s) <= MinIdeaLength || punctuationOnlyRe.MatchString(s)
}

// CleanIdeas sanitizes every idea and drops the noise.
func CleanIdeas(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s := SanitizeIdea(r); !IsNoise(s) {
			out = append(out, s)
		}
	}
	return out
}

func limit(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
