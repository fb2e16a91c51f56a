package citation

import (
	"regexp"
)

// Grammar fragments shared by the locator and the parser so the two cannot
// drift apart.
const (
	// Optional book number: "1 Timothy", "2John".
	numeralPattern = `(?:[1-4]\s?)?`

	// One run of letters. Unicode aware so "Génesis" and "Éxodo" are located.
	bookWordPattern = `\p{L}+`

	// A verse or a hyphen / en dash / em dash range.
	verseItemPattern = `\d+(?:[-–—]\d+)?`

	// Comma separated verses in one chapter.
	verseListPattern = verseItemPattern + `(?:,\s*` + verseItemPattern + `)*`

	// Further chapters after a semicolon: "; 4:1,2" or "; 5".
	chapterGroupPattern = `;\s?\d+(?::` + verseListPattern + `)?`

	// Chapter and optional verse specification after the book token.
	referenceTailPattern = `\s?(?P<chapter>\d+)(?::(?P<verses>` + verseListPattern + `(?:` + chapterGroupPattern + `)*))?`
)

// Locator finds candidate citation spans. Safe for concurrent use.
type Locator struct {
	// Only the word directly before the chapter is captured; multi-word
	// names are recovered by the Annotator.
	pattern *regexp.Regexp
	book    int
}

// NewLocator creates a locator with the compiled grammar.
func NewLocator() *Locator {
	pattern := regexp.MustCompile(`(?P<book>` + numeralPattern + bookWordPattern + `)` + referenceTailPattern)
	return &Locator{
		pattern: pattern,
		book:    pattern.SubexpIndex("book"),
	}
}

// Locate returns candidate spans in ascending, non-overlapping order. No book
// validation takes place.
func (locator *Locator) Locate(text string) []Span {
	matches := locator.pattern.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(matches))
	for _, matchIndices := range matches {
		spans = append(spans, Span{Start: matchIndices[0], End: matchIndices[1]})
	}
	return spans
}

// next returns the first candidate at or after from and the end offset of its
// book token.
func (locator *Locator) next(text string, from int) (Span, int, bool) {
	if from >= len(text) {
		return Span{}, 0, false
	}
	match := locator.pattern.FindStringSubmatchIndex(text[from:])
	if match == nil {
		return Span{}, 0, false
	}
	span := Span{Start: from + match[0], End: from + match[1]}
	bookEnd := from + match[2*locator.book+1]
	return span, bookEnd, true
}

// Candidates returns the text of every candidate span.
func (locator *Locator) Candidates(text string) []string {
	spans := locator.Locate(text)
	candidates := make([]string, 0, len(spans))
	for _, span := range spans {
		candidates = append(candidates, span.Text(text))
	}
	return candidates
}
