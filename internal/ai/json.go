package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Models wrap JSON payloads in prose, markdown fences, or both. Decoding
// goes through a short strategy chain: direct parse, fence removal, then
// extraction of the first balanced bracketed region. Exhausting the chain
// is a recoverable parse error, never a panic.

var codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json)?\\s*\\n?([\\s\\S]*?)\\n?`{3}")

// Decode parses a model response into T. It returns an error when every
// strategy fails; callers substitute their stage's fallback verdict.
func Decode[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	// Strategy 1: the response is already bare JSON.
	if v, err := tryUnmarshal[T](trimmed); err == nil {
		return v, nil
	}

	// Strategy 2: strip markdown code fences.
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		if v, err := tryUnmarshal[T](strings.TrimSpace(m[1])); err == nil {
			return v, nil
		}
	}

	// Strategy 3: extract the first balanced bracketed region from
	// surrounding prose.
	if region, ok := ExtractBracketed(trimmed); ok {
		if v, err := tryUnmarshal[T](region); err == nil {
			return v, nil
		}
	}

	slog.Debug("response JSON decode failed", "preview", truncate(trimmed, 120))
	return zero, fmt.Errorf("no decodable JSON payload in response")
}

func tryUnmarshal[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

// ExtractBracketed returns the first balanced top-level `[...]` or `{...}`
// region in text. Bracket depth is tracked outside JSON string literals so
// braces inside quoted values cannot unbalance the scan. The second return
// is false when no balanced region exists.
func ExtractBracketed(text string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '[' || text[i] == '{' {
			start = i
			open = text[i]
			if open == '[' {
				close = ']'
			} else {
				close = '}'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

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
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n] + "..."
}
