// Package scripture is the public entry point for finding, marking up and
// linking Bible citations. Every call takes the locale explicitly; there is
// no process-wide active locale.
//
//	loc := locale.MustBuiltin().MustGet(locale.DefaultLocale)
//	scripture.Scriptures("Read John 3:16.", loc) // ["John 3:16"]
package scripture

import (
	"fmt"

	"github.com/coolbeans/scriptura/pkg/citation"
	"github.com/coolbeans/scriptura/pkg/locale"
)

// Scriptures returns the citations in text exactly as written, left to right.
// Candidates whose book is not in the locale are omitted.
func Scriptures(text string, loc *locale.Locale) []string {
	return loc.Annotator().Scriptures(text)
}

// References returns the validated citations in text with their spans.
func References(text string, loc *locale.Locale) []*citation.Reference {
	return loc.Annotator().References(text)
}

// Surround wraps every citation in text with prefix and postfix.
func Surround(text, prefix, postfix string, loc *locale.Locale) string {
	return loc.Annotator().Surround(text, prefix, postfix)
}

// Link turns every citation in text into a Markdown link to the named site.
// It fails if the site is unknown or any citation cannot be linked.
func Link(text, siteName string, loc *locale.Locale) (string, error) {
	site, err := loc.Site(siteName)
	if err != nil {
		return "", err
	}
	linked, err := loc.Annotator().Link(text, site)
	if err != nil {
		return "", fmt.Errorf("linking text in locale %s: %w", loc.ID, err)
	}
	return linked, nil
}

// ResolveURL builds the site URL for a single reference.
func ResolveURL(ref *citation.Reference, site citation.Site) (string, error) {
	return citation.ResolveURL(ref, site)
}

// ParseReference parses text that is exactly one citation.
func ParseReference(text string, loc *locale.Locale) (*citation.Reference, error) {
	return loc.Annotator().Parser().Parse(text)
}

// IsScripture reports whether text is exactly one valid citation.
func IsScripture(text string, loc *locale.Locale) bool {
	return loc.Annotator().Parser().IsScripture(text)
}
