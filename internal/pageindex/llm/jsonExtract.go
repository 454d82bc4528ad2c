package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no JSON found in llm response")

var fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// ExtractObject pulls a JSON object out of model output. Fences are stripped,
// then the text is parsed strictly, then scanned for the first balanced object
// that parses.
func ExtractObject(text string) (map[string]any, error) {
	var out map[string]any
	if err := DecodeObject(text, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func ExtractArray(text string) ([]any, error) {
	var out []any
	if err := DecodeArray(text, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func DecodeObject(text string, v any) error {
	return decode(text, '{', '}', v)
}

func DecodeArray(text string, v any) error {
	return decode(text, '[', ']', v)
}

func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func decode(text string, open, close byte, v any) error {
	s := StripFences(text)
	if s == "" {
		return ErrNoJSON
	}
	if s[0] == open && tryUnmarshal(s, v) {
		return nil
	}

	for start := strings.IndexByte(s, open); start >= 0; {
		if end := matchingBracket(s, start, open, close); end > start {
			if tryUnmarshal(s[start:end+1], v) {
				return nil
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ErrNoJSON
}

func tryUnmarshal(candidate string, v any) bool {
	b := []byte(candidate)
	return json.Valid(b) && json.Unmarshal(b, v) == nil
}

// matchingBracket returns the index closing the bracket at start, ignoring
// brackets inside string literals, or -1.
func matchingBracket(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return i
			}
		}
	}
	return -1
}
