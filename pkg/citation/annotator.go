package citation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/coolbeans/scriptura/pkg/bible"
)

// AnnotatorOption configures an Annotator.
type AnnotatorOption func(*Annotator)

// WithLogger sets the logger used to report dropped candidates.
func WithLogger(logger zerolog.Logger) AnnotatorOption {
	return func(annotator *Annotator) {
		annotator.logger = logger
	}
}

// WithLocator replaces the default locator.
func WithLocator(locator *Locator) AnnotatorOption {
	return func(annotator *Annotator) {
		annotator.locator = locator
	}
}

// Annotator finds validated citations in text and rewrites the text around
// them. It never mutates its input and is safe for concurrent use.
//
// Candidates that fail validation are dropped silently by References,
// Scriptures and Surround. Link fails the whole call on the first citation
// it cannot turn into a URL: a broken link is worse than a missing one.
type Annotator struct {
	locator *Locator
	parser  *Parser
	logger  zerolog.Logger
}

// NewAnnotator creates an annotator validating against registry.
func NewAnnotator(registry *bible.Registry, opts ...AnnotatorOption) *Annotator {
	annotator := &Annotator{
		locator: NewLocator(),
		parser:  NewParser(registry),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(annotator)
	}
	return annotator
}

// Parser returns the parser used for validation.
func (annotator *Annotator) Parser() *Parser {
	return annotator.parser
}

// References returns the validated citations in text in left-to-right order.
//
// A rejected candidate does not consume the text after its book token: in
// "See 1 Timothy 3:16" the locator first offers "See 1", and the scan resumes
// at " 1 Timothy 3:16" once "See" fails to resolve. In "John 3:16, 2 John 1:5"
// the trailing ", 2" is handed back to the numbered book that follows it.
func (annotator *Annotator) References(text string) []*Reference {
	var refs []*Reference

	floor, from := 0, 0
	for {
		span, bookEnd, ok := annotator.locator.next(text, from)
		if !ok {
			break
		}

		ref, err := annotator.parseCandidate(text, span, floor)
		if err != nil {
			annotator.logger.Debug().
				Err(err).
				Str("candidate", span.Text(text)).
				Int("offset", span.Start).
				Msg("dropping scripture candidate")
			from = bookEnd
			continue
		}

		if trimmed, next, ok := annotator.splitTrailingNumeral(text, ref); ok {
			refs = append(refs, trimmed)
			floor, from = trimmed.Span.End, next
			continue
		}

		refs = append(refs, ref)
		floor, from = span.End, span.End
	}

	return refs
}

// Scriptures returns the citations in text exactly as written.
func (annotator *Annotator) Scriptures(text string) []string {
	refs := annotator.References(text)
	scriptures := make([]string, 0, len(refs))
	for _, ref := range refs {
		scriptures = append(scriptures, ref.Span.Text(text))
	}
	return scriptures
}

// Surround inserts prefix before and postfix after every citation. Everything
// else in text is copied unchanged.
func (annotator *Annotator) Surround(text, prefix, postfix string) string {
	if prefix == "" && postfix == "" {
		return text
	}
	surrounded, _ := annotator.Rewrite(text, func(ref *Reference) (string, error) {
		return prefix + ref.Raw + postfix, nil
	})
	return surrounded
}

// Link replaces every citation with a Markdown link "[citation](url)" built
// from site's templates. The first citation without a URL aborts the call.
func (annotator *Annotator) Link(text string, site Site) (string, error) {
	return annotator.Rewrite(text, func(ref *Reference) (string, error) {
		link, err := ResolveURL(ref, site)
		if err != nil {
			return "", fmt.Errorf("linking %q at offset %d: %w", ref.Raw, ref.Span.Start, err)
		}
		return "[" + ref.Raw + "](" + link + ")", nil
	})
}

// Rewrite replaces every citation with the string returned by replace. The
// output is built in one ascending pass over the spans, so earlier
// replacements never shift the offsets of later ones.
func (annotator *Annotator) Rewrite(text string, replace func(ref *Reference) (string, error)) (string, error) {
	refs := annotator.References(text)
	if len(refs) == 0 {
		return text, nil
	}

	var builder strings.Builder
	builder.Grow(len(text) + len(refs)*16)

	cursor := 0
	for _, ref := range refs {
		replacement, err := replace(ref)
		if err != nil {
			return "", err
		}
		builder.WriteString(text[cursor:ref.Span.Start])
		builder.WriteString(replacement)
		cursor = ref.Span.End
	}
	builder.WriteString(text[cursor:])

	return builder.String(), nil
}

// splitTrailingNumeral handles a verse list or chapter group whose last item
// is a lone 1-4 that actually starts the next numbered citation. It returns
// the reference without that item and the offset of the numeral.
func (annotator *Annotator) splitTrailingNumeral(text string, ref *Reference) (*Reference, int, bool) {
	end := ref.Span.End
	numeral := end - 1
	if numeral <= ref.Span.Start || text[numeral] < '1' || text[numeral] > '4' {
		return nil, 0, false
	}

	separator := numeral - 1
	for separator > ref.Span.Start && strings.IndexByte(" \t\n\f\r", text[separator]) >= 0 {
		separator--
	}
	if text[separator] != ',' && text[separator] != ';' {
		return nil, 0, false
	}

	next, _, ok := annotator.locator.next(text, numeral)
	if !ok || next.Start != numeral {
		return nil, 0, false
	}
	if _, err := annotator.parser.Parse(next.Text(text)); err != nil {
		return nil, 0, false
	}

	trimmedSpan := Span{Start: ref.Span.Start, End: separator}
	trimmed, err := annotator.parser.Parse(trimmedSpan.Text(text))
	if err != nil {
		return nil, 0, false
	}
	trimmed.Span = trimmedSpan
	return trimmed, numeral, true
}

// parseCandidate validates one span. When the book token is unknown and the
// registry has multi-word names, the span is widened one preceding word at a
// time ("Solomon 2:1" -> "of Solomon 2:1" -> "Song of Solomon 2:1"), never
// reaching below floor. The widest span that parses wins, so "el Cantar de
// los Cantares 2:1" beats "Cantar de los Cantares 2:1".
func (annotator *Annotator) parseCandidate(text string, span Span, floor int) (*Reference, error) {
	ref, err := annotator.parser.Parse(span.Text(text))
	if err == nil {
		ref.Span = span
		return ref, nil
	}
	if !errors.Is(err, bible.ErrBookNotFound) {
		return nil, err
	}

	var widest *Reference
	start := span.Start
	for extra := 1; extra < annotator.parser.Registry().MaxWords(); extra++ {
		wordStart, ok := precedingWord(text, start, floor)
		if !ok {
			break
		}
		start = wordStart

		starts := []int{wordStart}
		if numeralStart, ok := precedingNumeral(text, wordStart, floor); ok {
			starts = append(starts, numeralStart)
		}
		for _, candidateStart := range starts {
			widened := Span{Start: candidateStart, End: span.End}
			if widenedRef, widenErr := annotator.parser.Parse(widened.Text(text)); widenErr == nil {
				widenedRef.Span = widened
				widest = widenedRef
			}
		}
	}

	if widest == nil {
		return nil, err
	}
	return widest, nil
}

// precedingWord returns the start of the letter run separated from start by
// whitespace.
func precedingWord(text string, start, floor int) (int, bool) {
	position := start

	spaces := 0
	for position > floor {
		r, size := utf8.DecodeLastRuneInString(text[:position])
		if !unicode.IsSpace(r) {
			break
		}
		position -= size
		spaces++
	}
	if spaces == 0 {
		return 0, false
	}

	letters := 0
	for position > floor {
		r, size := utf8.DecodeLastRuneInString(text[:position])
		if !unicode.IsLetter(r) {
			break
		}
		position -= size
		letters++
	}
	if letters == 0 {
		return 0, false
	}

	return position, true
}

// precedingNumeral returns the start of a standalone book number ("1 ", "2")
// directly before wordStart.
func precedingNumeral(text string, wordStart, floor int) (int, bool) {
	position := wordStart
	if position > floor {
		r, size := utf8.DecodeLastRuneInString(text[:position])
		if r == ' ' {
			position -= size
		}
	}
	if position <= floor || text[position-1] < '1' || text[position-1] > '4' {
		return 0, false
	}
	position--

	if position > floor {
		r, _ := utf8.DecodeLastRuneInString(text[:position])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return 0, false
		}
	}

	return position, true
}
