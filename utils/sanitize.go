package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user supplied text and trims it.
// Entities produced by the policy are decoded so plain text round-trips.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// SanitizeAll applies SanitizeText to every element and drops empties.
func SanitizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if clean := SanitizeText(s); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
