package metrics

import (
	"strings"
	"unicode"
)

var friendlyAliases = map[string]string{
	"*runner.HTTPError":              "HTTP error response",
	"runner.HTTPError":               "HTTP error response",
	"*url.Error":                     "Request URL error",
	"url.Error":                      "Request URL error",
	"*context.deadlineExceededError": "Request timeout",
	"context.deadlineExceededError":  "Request timeout",
	"*net.OpError":                   "Connection error",
	"net.OpError":                    "Connection error",
}

// FriendlyErrorName maps a Go error type name (as recorded in the error
// breakdown) to a label fit for the report.
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}

	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}
	cleaned = strings.TrimPrefix(cleaned, "*")
	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}

	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		return name
	}
	return pretty
}

// humanizeTypeName splits a CamelCase identifier into capitalized words.
func humanizeTypeName(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		word := strings.ToLower(string(current))
		words = append(words, strings.ToUpper(word[:1])+word[1:])
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		current = append(current, r)
	}
	flush()

	return strings.Join(words, " ")
}
