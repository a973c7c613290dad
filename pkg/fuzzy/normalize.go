// Package fuzzy provides text canonicalization and similarity scalars used
// by the track matching pipeline.
package fuzzy

import (
	"regexp"
	"strings"
)

// featureMarkers are artist-feature and producer markers removed from titles
// and artist names. Order matters: longer markers are replaced before their
// prefixes.
var featureMarkers = []string{
	"featuring",
	"with",
	"feat.",
	"feat",
	"ft.",
	"ft",
	"prod.",
	"prod",
	"w/",
}

var (
	parenGroupRegex   = regexp.MustCompile(`\([^()\[\]{}]*\)`)
	bracketGroupRegex = regexp.MustCompile(`\[[^()\[\]{}]*\]`)
	braceGroupRegex   = regexp.MustCompile(`\{[^()\[\]{}]*\}`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)

	punctReplacer = strings.NewReplacer(
		"'", "", `"`, "", "!", "", "?", "", ";", "", ":", "", ",", "", ".", "",
		"(", "", ")", "", "[", "", "]", "", "{", "", "}", "",
	)
	separatorReplacer = strings.NewReplacer("/", " ", `\`, " ", "_", " ", "-", " ")
)

// Normalize produces the canonical form of a title or artist name for fuzzy
// comparison. It is idempotent and maps the empty string to itself. No
// unicode folding is applied beyond lowercasing.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(strings.TrimSpace(s))

	// Balanced bracket groups carry noise like "(Remastered)" or "[feat. X]".
	// Only innermost groups are matched; leftover brackets are dropped with
	// the rest of the punctuation below.
	s = parenGroupRegex.ReplaceAllString(s, " ")
	s = bracketGroupRegex.ReplaceAllString(s, " ")
	s = braceGroupRegex.ReplaceAllString(s, " ")

	for _, marker := range featureMarkers {
		s = strings.ReplaceAll(s, marker, " ")
	}

	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, "+", "and")

	s = punctReplacer.Replace(s)
	s = separatorReplacer.Replace(s)

	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
