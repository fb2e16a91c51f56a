package citation

import (
	"regexp"

	"github.com/coolbeans/scriptura/pkg/bible"
)

// referencePattern is the locator grammar anchored to a whole candidate, with
// a book group that also admits multi-word names ("Song of Solomon").
var referencePattern = regexp.MustCompile(
	`^(?P<book>` + numeralPattern + bookWordPattern + `(?:\s+` + bookWordPattern + `)*)` + referenceTailPattern + `$`,
)

var (
	bookGroup    = referencePattern.SubexpIndex("book")
	chapterGroup = referencePattern.SubexpIndex("chapter")
	versesGroup  = referencePattern.SubexpIndex("verses")
)

// Parser turns candidate text into a validated Reference using one locale's
// book registry. Safe for concurrent use.
type Parser struct {
	registry *bible.Registry
}

// NewParser creates a parser bound to registry.
func NewParser(registry *bible.Registry) *Parser {
	return &Parser{registry: registry}
}

// Registry returns the registry the parser validates against.
func (parser *Parser) Registry() *bible.Registry {
	return parser.registry
}

// Parse validates a single candidate such as "1 Timothy 3:16" or "Psalms 3:1-3".
// It returns a *bible.BookNotFoundError when the book token is not in the
// registry and a *MalformedReferenceError when the text is not a citation.
// Casing and separators of the returned reference are those of candidate.
func (parser *Parser) Parse(candidate string) (*Reference, error) {
	submatches := referencePattern.FindStringSubmatch(candidate)
	if submatches == nil {
		return nil, &MalformedReferenceError{Raw: candidate, Reason: "does not match the reference grammar"}
	}

	bookText := submatches[bookGroup]
	book, err := parser.registry.Resolve(bookText)
	if err != nil {
		return nil, err
	}

	ref := &Reference{
		Book:     book,
		BookText: bookText,
		Chapter:  submatches[chapterGroup],
		Verses:   submatches[versesGroup],
		Raw:      candidate,
	}

	if ref.Verses != "" {
		spec, err := ParseVerseSpec(ref.Verses)
		if err != nil {
			return nil, &MalformedReferenceError{Raw: candidate, Reason: err.Error()}
		}
		ref.spec = spec
	}

	return ref, nil
}

// IsScripture reports whether text is exactly one valid citation.
func (parser *Parser) IsScripture(text string) bool {
	_, err := parser.Parse(text)
	return err == nil
}
