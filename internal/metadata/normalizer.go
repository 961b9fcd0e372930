package metadata

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Bracketed annotations such as "(Official Video)" or "[HD]". Greedy on
	// purpose: everything between the first opening and the last closing
	// bracket goes.
	parenPattern   = regexp.MustCompile(`\(.*\)`)
	bracketPattern = regexp.MustCompile(`\[.*\]`)

	lyricsPattern    = regexp.MustCompile(`(?i)\b(?:lyrics?|paroles?)\b`)
	radioEditPattern = regexp.MustCompile(`(?i)[\[(]?radio edit[\])]?`)
	featPattern      = regexp.MustCompile(`(?i)\bf(?:ea)?t\.? [^-]+`)
	simplifyPattern  = regexp.MustCompile(`\(.+\)`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// minStrippableArtist is the shortest normalized artist name StripArtist will
// remove from a text. Shorter names ("M", "U2"...) would eat unrelated letters.
const minStrippableArtist = 3

// StripNoise removes bracketed segments and standalone "lyrics"/"paroles"
// words from a raw query, producing the text sent to catalogs. Catalog hits
// never go through it: "Paroles, paroles" is a real title.
func StripNoise(text string) string {
	text = parenPattern.ReplaceAllString(text, "")
	text = bracketPattern.ReplaceAllString(text, "")
	return lyricsPattern.ReplaceAllString(text, "")
}

// StripRadioEdit removes a "radio edit" marker, optionally bracketed.
func StripRadioEdit(text string) string {
	return radioEditPattern.ReplaceAllString(text, "")
}

// StripFeaturing replaces "feat. X"/"ft X" clauses up to the next dash with a
// single space.
func StripFeaturing(text string) string {
	return featPattern.ReplaceAllString(text, " ")
}

// Normalize squashes text into a lowercase alphanumeric comparison key.
// Unless exact is set, bracketed segments are dropped too. Both sides of a
// comparison must use the same exact flag. Normalize is idempotent.
func Normalize(text string, exact bool) string {
	if !exact {
		text = parenPattern.ReplaceAllString(text, "")
		text = bracketPattern.ReplaceAllString(text, "")
	}
	text = strings.ToLower(foldAccents(text))
	text = StripRadioEdit(text)
	return nonAlnumPattern.ReplaceAllString(text, "")
}

// StripArtist normalizes text and removes every occurrence of the normalized
// artist name from it. Artists whose normalized name is shorter than three
// characters are left in place.
func StripArtist(artist, text string, exact bool) string {
	key := Normalize(artist, exact)
	normalized := Normalize(text, exact)
	if len(key) < minStrippableArtist {
		return normalized
	}
	return strings.ReplaceAll(normalized, key, "")
}

// Simplify drops a parenthesized segment while keeping case and punctuation.
// It is used for the final scoring against the original video title.
func Simplify(text string) string {
	return simplifyPattern.ReplaceAllString(text, "")
}

// foldAccents decomposes text and drops combining marks so "Björk" squashes
// to "bjork" instead of "bjrk".
func foldAccents(text string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(text) {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
