package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Repairs for common model output drift, applied only after a plain decode fails
var (
	// "value"\n"key": -> "value",\n"key":
	missingCommaBeforeKeyRegex = regexp.MustCompile(`(")(\s*\n\s*)("[\w][^"]*"\s*:)`)

	// 123\n"key": -> 123,\n"key":
	missingCommaAfterValueRegex = regexp.MustCompile(`(\d|true|false|null)(\s*\n\s*)("[\w][^"]*"\s*:)`)

	// }\n"key": -> },\n"key":
	missingCommaAfterBraceRegex = regexp.MustCompile(`([}\]])(\s*\n\s*)("[\w][^"]*"\s*:)`)

	// ,} -> }
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
)

// decodeResponseObject decodes the first JSON object in payload.
// Text after the object is ignored. When the object does not decode as is,
// a repaired copy is tried; notes describe what was ignored or repaired.
func decodeResponseObject(payload string) (map[string]json.RawMessage, []string, error) {
	start := strings.IndexByte(payload, '{')
	if start < 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return nil, nil, err
		}
		if fields == nil {
			return nil, nil, fmt.Errorf("payload is not a JSON object")
		}
		return fields, nil, nil
	}
	body := payload[start:]

	fields, rest, err := decodeFirst(body)
	if err == nil {
		var notes []string
		if rest != "" {
			notes = append(notes, "ignored trailing text after the JSON object")
		}
		return fields, notes, nil
	}

	repaired, notes := repairJSON(body)
	if fields, _, rerr := decodeFirst(repaired); rerr == nil {
		return fields, notes, nil
	}

	// Output cut off inside a member: drop the partial member and close again
	if cut := lastCommaOutsideStrings(repaired); cut > 0 {
		closed, closeNotes := closeTruncated(repaired[:cut])
		closed = trailingCommaRegex.ReplaceAllString(closed, `$1`)
		if fields, _, rerr := decodeFirst(closed); rerr == nil {
			notes = append(notes, "dropped an incomplete member at the end of the response")
			return fields, appendMissing(notes, closeNotes...), nil
		}
	}

	return nil, nil, err
}

// decodeFirst decodes one JSON object and returns the non-blank text after it
func decodeFirst(body string) (map[string]json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&fields); err != nil {
		return nil, "", err
	}
	if fields == nil {
		return nil, "", fmt.Errorf("payload is not a JSON object")
	}
	return fields, strings.TrimSpace(body[dec.InputOffset():]), nil
}

// repairJSON fixes control characters inside strings, missing and trailing
// commas, and structures left open by a truncated response
func repairJSON(input string) (string, []string) {
	var notes []string
	result := input

	if sanitized := sanitizeControlChars(result); sanitized != result {
		notes = append(notes, "escaped raw control characters inside strings")
		result = sanitized
	}

	fixed := missingCommaBeforeKeyRegex.ReplaceAllString(result, `$1,$2$3`)
	fixed = missingCommaAfterValueRegex.ReplaceAllString(fixed, `$1,$2$3`)
	fixed = missingCommaAfterBraceRegex.ReplaceAllString(fixed, `$1,$2$3`)
	if fixed != result {
		notes = append(notes, "inserted missing commas")
		result = fixed
	}

	closed, closeNotes := closeTruncated(result)
	notes = append(notes, closeNotes...)
	result = closed

	if fixed := trailingCommaRegex.ReplaceAllString(result, `$1`); fixed != result {
		notes = append(notes, "removed trailing commas")
		result = fixed
	}

	return result, notes
}

// sanitizeControlChars escapes literal control characters inside JSON strings
func sanitizeControlChars(input string) string {
	var result strings.Builder
	result.Grow(len(input))

	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			result.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && inString {
			result.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			result.WriteByte(c)
			continue
		}
		if !inString || c >= 0x20 {
			result.WriteByte(c)
			continue
		}

		switch c {
		case '\t':
			result.WriteString(`\t`)
		case '\n':
			result.WriteString(`\n`)
		case '\r':
			result.WriteString(`\r`)
		default:
			result.WriteString(fmt.Sprintf(`\u%04x`, c))
		}
	}

	return result.String()
}

// closeTruncated terminates an open string and closes open objects and
// arrays in nesting order. Braces inside strings are not counted.
func closeTruncated(input string) (string, []string) {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case (c == '}' || c == ']') && len(stack) > 0:
			stack = stack[:len(stack)-1]
		}
	}

	if !inString && len(stack) == 0 {
		return input, nil
	}

	var b strings.Builder
	b.WriteString(input)
	if inString {
		if escaped {
			// A dangling backslash would escape the closing quote
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), []string{"closed a truncated response"}
}

// lastCommaOutsideStrings returns the index of the last structural comma, or -1
func lastCommaOutsideStrings(input string) int {
	last := -1
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == ',':
			last = i
		}
	}
	return last
}

func appendMissing(notes []string, extra ...string) []string {
	for _, e := range extra {
		found := false
		for _, n := range notes {
			if n == e {
				found = true
				break
			}
		}
		if !found {
			notes = append(notes, e)
		}
	}
	return notes
}
