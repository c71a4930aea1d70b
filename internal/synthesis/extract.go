package synthesis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Tier identifies which stage of the parse pipeline produced a result.
type Tier int

const (
	TierNone     Tier = iota // nothing parsed; caller falls back to heuristics
	TierStrict               // the whole response was valid JSON
	TierBalanced             // the first balanced span was valid JSON
)

// ErrNoJSON is returned when neither structural tier could decode a value.
var ErrNoJSON = errors.New("synthesis: no JSON found in response")

var fenceRe = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// StripFences removes Markdown code-fence lines and surrounding whitespace.
func StripFences(text string) string {
	text = fenceRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseStrict decodes the entire response, after fence stripping, into v.
func ParseStrict(text string, v any) error {
	return json.Unmarshal([]byte(StripFences(text)), v)
}

// ExtractBalanced returns the first span of text that starts with open and
// ends at its matching close, skipping delimiters inside JSON strings.
func ExtractBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	for start >= 0 {
		if end, ok := matchSpan(text, start, open, close); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchSpan(text string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// DecodeObject runs the structural tiers for a JSON object response.
func DecodeObject(text string, v any) (Tier, error) {
	return decode(text, '{', '}', v)
}

// DecodeArray runs the structural tiers for a JSON array response.
func DecodeArray(text string, v any) (Tier, error) {
	return decode(text, '[', ']', v)
}

func decode(text string, open, close byte, v any) (Tier, error) {
	if err := ParseStrict(text, v); err == nil {
		return TierStrict, nil
	}
	if span, ok := ExtractBalanced(text, open, close); ok {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return TierBalanced, nil
		}
	}
	return TierNone, ErrNoJSON
}
