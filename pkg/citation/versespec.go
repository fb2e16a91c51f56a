package citation

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// VerseSpec is the structure of the text after the chapter colon:
//
//	16            single verse
//	1,2,3         list
//	14-15         range (hyphen, en dash or em dash)
//	1-3,5;4:2,3   list followed by further chapter groups
type VerseSpec struct {
	Items  []*VerseItem    `parser:"@@ ( \",\" @@ )*"`
	Groups []*ChapterGroup `parser:"( \";\" @@ )*"`
}

// VerseItem is a single verse or a dash range.
type VerseItem struct {
	First string `parser:"@Number"`
	Dash  string `parser:"( @Dash"`
	Last  string `parser:"  @Number )?"`
}

// ChapterGroup is a "chapter[:items]" group following a semicolon.
type ChapterGroup struct {
	Chapter string       `parser:"@Number"`
	Items   []*VerseItem `parser:"( \":\" @@ ( \",\" @@ )* )?"`
}

// verseLexer tokenizes verse specifications.
var verseLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `\d+`},
	// Hyphen, en dash and em dash all mark a range.
	{Name: "Dash", Pattern: `[-–—]`},
	{Name: "Punct", Pattern: `[,;:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var verseParser = participle.MustBuild[VerseSpec](
	participle.Lexer(verseLexer),
	participle.Elide("Whitespace"),
)

// ParseVerseSpec parses the verse part of a citation ("17-19", "1,2;4:3").
func ParseVerseSpec(input string) (*VerseSpec, error) {
	spec, err := verseParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verse spec %q: %w", input, err)
	}
	return spec, nil
}

// IsRange reports whether the item is a dash range.
func (item *VerseItem) IsRange() bool {
	return item.Last != ""
}

// String returns the item with a plain hyphen as range separator.
func (item *VerseItem) String() string {
	if item.IsRange() {
		return item.First + "-" + item.Last
	}
	return item.First
}

// String returns the spec normalised to hyphens and no spaces.
func (spec *VerseSpec) String() string {
	var builder strings.Builder
	writeItems(&builder, spec.Items)
	for _, group := range spec.Groups {
		builder.WriteString(";")
		builder.WriteString(group.Chapter)
		if len(group.Items) > 0 {
			builder.WriteString(":")
			writeItems(&builder, group.Items)
		}
	}
	return builder.String()
}

// VerseCount returns the number of items in the leading chapter.
func (spec *VerseSpec) VerseCount() int {
	return len(spec.Items)
}

func writeItems(builder *strings.Builder, items []*VerseItem) {
	for i, item := range items {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString(item.String())
	}
}
