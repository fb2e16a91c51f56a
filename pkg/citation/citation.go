// Package citation locates scripture citations in free text, validates them
// against a book registry, and rewrites the text around them.
//
// The pipeline runs in one direction:
//
//	text -> Locator (candidate spans) -> Parser (book registry) -> Reference -> Annotator
//
// The Locator is deliberately permissive: it matches anything shaped like
// "Word 3:16" and leaves book validation to the Parser, so the regular
// expression stays locale independent.
package citation

import (
	"fmt"
	"strings"

	"github.com/coolbeans/scriptura/pkg/bible"
)

// Span is a half-open byte range [Start, End) into a text buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Text returns the substring of text covered by the span, or "" when the
// span does not fit inside text.
func (s Span) Text(text string) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return ""
	}
	return text[s.Start:s.End]
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Reference is a validated scripture citation.
type Reference struct {
	// Book is the registry entry the book token resolved to.
	Book bible.Book `json:"book"`

	// BookText, Chapter and Verses are exactly as written in the source.
	BookText string `json:"book_text"`
	Chapter  string `json:"chapter"`
	Verses   string `json:"verses,omitempty"`

	// Raw is the full citation as written.
	Raw string `json:"raw"`

	// Span is the position of Raw in the annotated text. Zero for references
	// built outside an annotation pass.
	Span Span `json:"span"`

	spec *VerseSpec
}

// NewReference builds a reference from already-resolved parts, for callers
// that construct links without scanning text. verses may be empty for a
// whole-chapter reference.
func NewReference(book bible.Book, chapter, verses string) (*Reference, error) {
	raw := book.Name + " " + chapter
	if verses != "" {
		raw += ":" + verses
	}
	if !isDigits(chapter) {
		return nil, &MalformedReferenceError{Raw: raw, Reason: "chapter must be a number"}
	}

	ref := &Reference{
		Book:     book,
		BookText: book.Name,
		Chapter:  chapter,
		Verses:   verses,
		Raw:      raw,
	}
	if verses != "" {
		spec, err := ParseVerseSpec(verses)
		if err != nil {
			return nil, &MalformedReferenceError{Raw: raw, Reason: err.Error()}
		}
		ref.spec = spec
	}
	return ref, nil
}

// Spec returns the parsed verse specification, or nil for a whole-chapter
// reference.
func (ref *Reference) Spec() *VerseSpec {
	return ref.spec
}

// IsChapterOnly reports whether the citation names a chapter without verses.
func (ref *Reference) IsChapterOnly() bool {
	return ref.spec == nil
}

// IsRange reports whether the first verse item is a dash range ("14-15").
// A dash that only appears after a comma ("17,18-19") does not count.
func (ref *Reference) IsRange() bool {
	return ref.spec != nil && ref.spec.Items[0].IsRange()
}

// HasChapterGroups reports whether the verse spec continues into further
// chapters after a semicolon ("3:16;4:1").
func (ref *Reference) HasChapterGroups() bool {
	return ref.spec != nil && len(ref.spec.Groups) > 0
}

// FirstVerse returns the first verse number as written, or "" for a
// whole-chapter reference.
func (ref *Reference) FirstVerse() string {
	if ref.spec == nil {
		return ""
	}
	return ref.spec.Items[0].First
}

// LastVerse returns the end of the leading range, or FirstVerse when the
// reference is not a range.
func (ref *Reference) LastVerse() string {
	if ref.spec == nil {
		return ""
	}
	if ref.spec.Items[0].IsRange() {
		return ref.spec.Items[0].Last
	}
	return ref.spec.Items[0].First
}

// String returns the canonical form, e.g. "john 3:16".
func (ref *Reference) String() string {
	var builder strings.Builder
	builder.WriteString(ref.Book.Name)
	builder.WriteString(" ")
	builder.WriteString(ref.Chapter)
	if ref.Verses != "" {
		builder.WriteString(":")
		builder.WriteString(ref.Verses)
	}
	return builder.String()
}

// GoString helps test failure output.
func (ref *Reference) GoString() string {
	return fmt.Sprintf("citation.Reference{Raw: %q, Book: %q, Span: %v}", ref.Raw, ref.Book.Name, ref.Span)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
