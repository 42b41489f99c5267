package interpreter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Model replies should be raw JSON but regularly arrive wrapped in markdown
// fences, sprinkled with comments, or embedded in prose. The patterns below
// are compiled once; Decode applies them in escalating order.
var (
	reFenceWhole = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	reFenceAny   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	reUnquotedKey   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	reObject = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	reArray  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// Decode parses a model reply into T with fallback strategies:
//
//  1. direct JSON parse
//  2. strip markdown code fences and retry
//  3. fix trailing commas, unquoted keys and comments, retry
//  4. extract the first JSON object or array from mixed content, retry
func Decode[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	if v, err := tryParse[T](trimmed); err == nil {
		return v, nil
	}

	slog.Debug("direct JSON parse failed, trying recovery strategies",
		"preview", snippet(trimmed, 100))

	unfenced := stripFences(trimmed)
	if unfenced != trimmed {
		if v, err := tryParse[T](unfenced); err == nil {
			return v, nil
		}
	}

	cleaned := cleanupJSON(unfenced)
	if v, err := tryParse[T](cleaned); err == nil {
		return v, nil
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if v, err := tryParse[T](extracted); err == nil {
			return v, nil
		}
	}

	return zero, fmt.Errorf("response is not valid JSON after all recovery strategies: %s", snippet(trimmed, 200))
}

func tryParse[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

// stripFences removes markdown code fences wrapping or embedded in text.
func stripFences(text string) string {
	cleaned := reFenceWhole.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = reFenceAny.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON repairs the quirks models most often introduce: trailing
// commas, unquoted object keys, and // or /* */ comments. Single quotes are
// left alone since rewriting them breaks legitimate apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = reTrailingComma.ReplaceAllString(cleaned, "$1")
	cleaned = reUnquotedKey.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = reLineComment.ReplaceAllString(cleaned, "")
	cleaned = reBlockComment.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls the outermost JSON object or array out of mixed content.
// The first-character check keeps an array from being narrowed to its first
// element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if m := reArray.FindString(text); m != "" {
				return m
			}
		case '{':
			if m := reObject.FindString(text); m != "" {
				return m
			}
		}
	}
	if m := reObject.FindString(text); m != "" {
		return m
	}
	return reArray.FindString(text)
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
