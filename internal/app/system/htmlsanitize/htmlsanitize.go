// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips dangerous markup from user-provided rich
// text before it is stored. Circle names and descriptions pass through
// here on create and update.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// ugc permits the usual user-generated-content tags (p, em, strong,
	// lists, links) while removing scripts, event handlers, and
	// javascript: URLs.
	ugc = bluemonday.UGCPolicy()

	// strict strips all markup, leaving plain text.
	strict = bluemonday.StrictPolicy()
)

// Sanitize cleans rich text, keeping safe formatting tags.
func Sanitize(s string) string {
	return ugc.Sanitize(s)
}

// PlainText strips all markup and trims surrounding whitespace. Used for
// single-line fields like circle names.
func PlainText(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
