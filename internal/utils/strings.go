package utils

import "strings"

// FirstNonEmpty returns the first value that is not the empty string
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Preview truncates text to at most limit runes and renders newlines as a literal \n.
func Preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return strings.ReplaceAll(string(runes), "\n", `\n`)
}
