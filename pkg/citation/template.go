package citation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Template placeholders.
const (
	PlaceholderBookName = "{BOOKNAME}"
	PlaceholderChapter  = "{CHAPTER}"
	PlaceholderBookNum  = "{BOOKNUM}"
	PlaceholderVerse    = "{VERSE}"
)

var placeholderPattern = regexp.MustCompile(`\{(?:BOOKNAME|CHAPTER|BOOKNUM|VERSE)\}`)

// Site is an external Bible-study target and its URL templates.
//
// The range template repeats the {BOOKNUM}{CHAPTER}{VERSE} anchor group after
// a literal "-v"; the first group receives the first verse of the range and
// the second group the last.
type Site struct {
	Name            string `yaml:"name" json:"name"`
	SingleTemplate  string `yaml:"single" json:"single"`
	RangeTemplate   string `yaml:"range" json:"range"`
	ChapterTemplate string `yaml:"chapter,omitempty" json:"chapter,omitempty"`
}

// Template returns the template that applies to ref.
func (site Site) Template(ref *Reference) string {
	switch {
	case ref.IsChapterOnly():
		return site.ChapterTemplate
	case ref.IsRange():
		return site.RangeTemplate
	default:
		return site.SingleTemplate
	}
}

// ResolveURL fills the site template for ref. Placeholders are substituted in
// a single left-to-right pass:
//
//	{BOOKNAME}  book slug ("1-samuel"), path escaped
//	{CHAPTER}   first occurrence as a plain number, later ones zero-padded to 3
//	{BOOKNUM}   book index zero-padded to 2 ("05", "40")
//	{VERSE}     zero-padded to 3; the second occurrence is the end of the range
//
// A padded value wider than its field fails with a URLBuildError instead of
// producing an ambiguous anchor.
func ResolveURL(ref *Reference, site Site) (string, error) {
	if ref == nil {
		return "", &URLBuildError{Site: site.Name, Reason: "no reference"}
	}
	if ref.HasChapterGroups() {
		return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: "citations spanning several chapters are not supported"}
	}

	template := site.Template(ref)
	if template == "" {
		kind := "single-verse"
		switch {
		case ref.IsChapterOnly():
			kind = "chapter"
		case ref.IsRange():
			kind = "range"
		}
		return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: fmt.Sprintf("site has no %s template", kind)}
	}

	chapter, err := strconv.Atoi(ref.Chapter)
	if err != nil {
		return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: fmt.Sprintf("chapter %q is not a number", ref.Chapter)}
	}

	var firstVerse, lastVerse int
	if ref.IsChapterOnly() {
		if strings.Contains(template, PlaceholderVerse) {
			return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: "chapter template needs a verse"}
		}
	} else {
		if firstVerse, err = strconv.Atoi(ref.FirstVerse()); err != nil {
			return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: fmt.Sprintf("verse %q is not a number", ref.FirstVerse())}
		}
		if lastVerse, err = strconv.Atoi(ref.LastVerse()); err != nil {
			return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: fmt.Sprintf("verse %q is not a number", ref.LastVerse())}
		}
	}

	chapterCount, verseCount := 0, 0
	var overflow string
	pad := func(field string, value, width int) string {
		padded := fmt.Sprintf("%0*d", width, value)
		if len(padded) > width && overflow == "" {
			overflow = fmt.Sprintf("%s %d does not fit a %d-digit anchor", field, value, width)
		}
		return padded
	}
	link := placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		switch placeholder {
		case PlaceholderBookName:
			return url.PathEscape(ref.Book.Slug())
		case PlaceholderChapter:
			chapterCount++
			if chapterCount == 1 {
				return strconv.Itoa(chapter)
			}
			return pad("chapter", chapter, 3)
		case PlaceholderBookNum:
			return pad("book number", ref.Book.Index, 2)
		case PlaceholderVerse:
			verseCount++
			if verseCount == 2 {
				return pad("verse", lastVerse, 3)
			}
			return pad("verse", firstVerse, 3)
		}
		return placeholder
	})
	if overflow != "" {
		return "", &URLBuildError{Reference: ref.Raw, Site: site.Name, Reason: overflow}
	}

	return link, nil
}

// URL is a convenience wrapper around ResolveURL.
func (site Site) URL(ref *Reference) (string, error) {
	return ResolveURL(ref, site)
}
