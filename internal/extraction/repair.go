package extraction

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response holds no JSON object at all.
var ErrNoJSON = errors.New("no JSON object in response")

// ErrUnrepairable is returned when repair still leaves invalid JSON.
var ErrUnrepairable = errors.New("response JSON could not be repaired")

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
)

// RepairJSON coaxes a model response into valid JSON. It strips markdown
// fences and smart quotes, starts at the first '{', drops trailing commas,
// ignores text after the outermost object closes, and appends the closers a
// truncated response is missing.
func RepairJSON(raw string) (string, error) {
	s := stripFences(raw)
	s = smartQuotes.Replace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	s = s[start:]

	var (
		out      strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	out.Grow(len(s) + 8)

scan:
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				// stray closer
				continue
			}
			stack = stack[:len(stack)-1]
			out.WriteByte(c)
			if len(stack) == 0 {
				break scan
			}
			continue
		case ',':
			if next := nextNonSpace(s, i+1); next == '}' || next == ']' {
				continue
			}
		}
		out.WriteByte(c)
	}

	repaired := out.String()
	if inString {
		if escaped {
			repaired = repaired[:len(repaired)-1]
		}
		repaired += `"`
	}
	if len(stack) > 0 {
		repaired = strings.TrimRight(repaired, " \t\r\n")
		repaired = strings.TrimSuffix(repaired, ",")
		if strings.HasSuffix(repaired, ":") {
			repaired += "null"
		}
		for i := len(stack) - 1; i >= 0; i-- {
			repaired += string(stack[i])
		}
	}

	if !json.Valid([]byte(repaired)) {
		return "", ErrUnrepairable
	}
	return repaired, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	start := strings.Index(s, "```")
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// drop the info string, e.g. "json"
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func nextNonSpace(s string, i int) byte {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return s[i]
		}
	}
	return 0
}
