// Package filename provides the two sanitizers used to turn episode metadata
// into path segments.
//
// UnicodeSafe keeps names readable for trees people browse by hand. StrictASCII
// produces names that automated uploaders accept. Callers pick one explicitly;
// the two are never interchangeable.
package filename

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// homoglyphs maps characters that are unsafe on common filesystems to
// visually similar unicode characters.
var homoglyphs = strings.NewReplacer(
	":", "꞉",
	"/", "∕",
	"*", "＊",
	"?", "？",
	`"`, "“",
	"<", "＜",
	">", "＞",
	"|", "⏐",
)

// controlChars matches characters no filesystem tolerates.
var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// strictInvalid matches everything outside the machine-safe character class.
var strictInvalid = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// multiUnderscore collapses runs of underscores left behind by stripping.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// UnicodeSafe replaces filesystem-unsafe characters with unicode lookalikes.
// Everything else, including non-ASCII text, is preserved.
func UnicodeSafe(name string) string {
	s := controlChars.ReplaceAllString(name, "")
	s = homoglyphs.Replace(s)
	return strings.TrimSpace(s)
}

// StrictASCII reduces name to [A-Za-z0-9_.-]. Accented letters are folded to
// their base letter, whitespace becomes an underscore and anything else is
// dropped. Leading dots are stripped so the result is never a hidden file.
func StrictASCII(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	s := strings.TrimSpace(folded)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
	s = strictInvalid.ReplaceAllString(s, "")
	s = multiUnderscore.ReplaceAllString(s, "_")
	return strings.TrimLeft(s, ".")
}
