// Package sanitize cleans user-supplied free text before it is stored.
// Names, observations and notes are plain text: any markup is stripped and
// the remaining entities are decoded, so templates escape the value once on
// output.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict drops every element. Policies are safe for concurrent use once built.
var strict = bluemonday.StrictPolicy()

// Text returns s with all markup removed and surrounding whitespace trimmed.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// TextPtr applies Text to a patch field, keeping nil as nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Text(*s)
	return &v
}
