package utils

import (
	"regexp"
	"strings"
)

var (
	angleAddressRegex = regexp.MustCompile(`<([^>]+)>`)
	displayNameRegex  = regexp.MustCompile(`^([^<]+)<`)
)

// ParseEmailFromAddress extracts the machine address from a free-form From value.
// "Jane Doe <Jane@Example.com>" -> "jane@example.com"
func ParseEmailFromAddress(raw string) string {
	if match := angleAddressRegex.FindStringSubmatch(raw); match != nil {
		return strings.ToLower(strings.TrimSpace(match[1]))
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseNameFromAddress returns the trimmed prefix before "<" when there is one, even if it is blank.
// Without a prefix it falls back to the local part of the address, or the whole address when that is empty.
func ParseNameFromAddress(raw string) string {
	if match := displayNameRegex.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	email := ParseEmailFromAddress(raw)
	return FirstNonEmpty(LocalPart(email), email)
}

// LocalPart returns everything before the first @, or the input when there is none
func LocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}

// DomainPart returns everything after the first @, or "" when there is none
func DomainPart(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[idx+1:]
	}
	return ""
}

// NormalizeEntries lowercases and trims every entry and drops the empty ones.
func NormalizeEntries(entries []string) []string {
	normalized := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			normalized = append(normalized, entry)
		}
	}
	return normalized
}
