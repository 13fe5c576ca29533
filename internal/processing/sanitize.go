package processing

import (
	"regexp"
	"strings"
)

var tagRegex = regexp.MustCompile(`<.*?>`)

// entityReplacer decodes the entities the search API emits. It runs as a
// single pass, so "&amp;lt;" becomes "&lt;" and not "<".
var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&middot;", "·",
)

// Sanitize strips markup tags and decodes a fixed set of HTML entities.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return entityReplacer.Replace(tagRegex.ReplaceAllString(raw, ""))
}
