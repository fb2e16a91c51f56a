// Package bible provides the canonical book registry used to validate scripture
// citations: one registry per locale, mapping canonical names and aliases to the
// 66 books of the Protestant canon.
package bible

import (
	"strings"
)

// CanonSize is the number of books in the supported canon.
const CanonSize = 66

// Book is one canonical book of the Bible.
type Book struct {
	// Name is the canonical lowercase name (e.g., "1 samuel", "song of solomon").
	Name string `yaml:"name" json:"name"`

	// Index is the book number in canonical order, 1 (Genesis) to 66 (Revelation).
	Index int `yaml:"index" json:"index"`

	// Aliases are additional accepted spellings and abbreviations.
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Slug returns the name as a URL path segment: "1 samuel" becomes "1-samuel"
// and "génesis" becomes "genesis".
func (b Book) Slug() string {
	return strings.Join(strings.Fields(stripMarks(b.Name)), "-")
}

// IsZero reports whether b is the zero Book.
func (b Book) IsZero() bool {
	return b.Name == "" && b.Index == 0
}

// Names returns the canonical name followed by every alias.
func (b Book) Names() []string {
	names := make([]string, 0, len(b.Aliases)+1)
	names = append(names, b.Name)
	names = append(names, b.Aliases...)
	return names
}

// IsOldTestament reports whether the book precedes Matthew in canonical order.
func (b Book) IsOldTestament() bool {
	return b.Index >= 1 && b.Index <= 39
}

// IsNewTestament reports whether the book is Matthew or later.
func (b Book) IsNewTestament() bool {
	return b.Index >= 40 && b.Index <= CanonSize
}
