package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonicalize normalizes a human-entered category, subtopic, tag or title
// into its matching key: lowercase, "&" becomes "and", characters outside
// [a-z0-9], whitespace and "-" are dropped, whitespace runs become a single
// "-", repeated "-" collapse, and leading/trailing "-" are trimmed.
//
// The same function builds folder and file names on write and matches URL
// segments on read. Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return b.String()
}

// Label keeps the two forms of a case-insensitive name apart: Key is the
// canonical form used for matching, Display is the form found on disk or
// in front matter.
type Label struct {
	Key     string `json:"key"`
	Display string `json:"display"`
}

// NewLabel builds a Label from a display string.
func NewLabel(display string) Label {
	display = strings.TrimSpace(display)
	return Label{Key: Canonicalize(display), Display: display}
}

// IsZero reports whether the label carries no name.
func (l Label) IsZero() bool { return l.Key == "" }

// Matches reports whether s canonicalizes to the label's key.
func (l Label) Matches(s string) bool {
	return l.Key == Canonicalize(s)
}

// TitleFromSlug turns "open-enrollment" into "Open Enrollment".
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return ""
	}
	// Casers carry state and must not be shared between goroutines.
	return cases.Title(language.English).String(strings.Join(words, " "))
}
