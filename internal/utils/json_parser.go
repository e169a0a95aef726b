package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecodeJSON parses an upstream response body that may contain:
// - Pure JSON
// - A UTF-8 byte order mark
// - A JSONP style wrapper or other text around the payload
func DecodeJSON(body []byte, target interface{}) error {
	input := bytes.TrimSpace(body)
	if len(input) == 0 {
		return fmt.Errorf("empty input")
	}

	// Try direct parsing first (most common case)
	if err := json.Unmarshal(input, target); err == nil {
		return nil
	}

	input = bytes.TrimPrefix(input, []byte("\ufeff"))
	if err := json.Unmarshal(input, target); err == nil {
		return nil
	}

	// Try to find JSON object/array in text
	if extracted := extractJSONFromText(string(input)); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", truncateString(string(input), 100))
}

// extractJSONFromText finds the first JSON object or array in surrounding text
func extractJSONFromText(input string) string {
	objStart := strings.Index(input, "{")
	arrStart := strings.Index(input, "[")

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if extracted := extractBalancedBraces(input[arrStart:], '[', ']'); extracted != "" {
			return extracted
		}
	}
	if objStart >= 0 {
		return extractBalancedBraces(input[objStart:], '{', '}')
	}
	return ""
}

// extractBalancedBraces extracts content with balanced braces
func extractBalancedBraces(input string, open, close rune) string {
	if len(input) == 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}

		if ch == '\\' {
			escape = true
			continue
		}

		if ch == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// OneOrMany decodes a JSON value that is either a single T or an array of T.
// HAFAS style APIs collapse one-element lists into plain objects.
type OneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler
func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}

// FlexString decodes a JSON string or number into a string.
// Station IDs and tracks arrive as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the plain string value
func (f FlexString) String() string {
	return string(f)
}

// FlexFloat decodes a JSON number or numeric string into a float64.
// Empty strings and null decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flex float: %w", err)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("flex float: %w", err)
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns the plain float64 value
func (f FlexFloat) Float() float64 {
	return float64(f)
}
