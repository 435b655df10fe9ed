package organize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxComponentRunes caps each path segment well under common filesystem
// limits, leaving headroom for the collision suffix
const maxComponentRunes = 180

// SanitizePathComponent makes a tag value safe as a single path segment.
// Handles the mess real peer libraries produce: illegal filesystem
// characters, control characters, runs of whitespace, trailing dots.
func SanitizePathComponent(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	// Replace illegal filesystem characters with underscores
	illegal := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range illegal {
		s = strings.ReplaceAll(s, char, "_")
	}

	// Strip control characters
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	// Collapse whitespace runs
	s = strings.Join(strings.Fields(s), " ")

	// Collapse multiple underscores
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}

	// Trailing dots and spaces break Windows shares
	s = strings.Trim(s, " .")

	if runes := []rune(s); len(runes) > maxComponentRunes {
		s = strings.TrimRight(string(runes[:maxComponentRunes]), " _.")
	}

	return s
}

// componentOr sanitizes s and substitutes fallback when nothing survives
func componentOr(s, fallback string) string {
	if clean := SanitizePathComponent(s); clean != "" {
		return clean
	}
	return fallback
}
