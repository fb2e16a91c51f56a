package locale

import (
	"fmt"
	"sort"

	"github.com/coolbeans/scriptura/pkg/citation"
)

// Match is how well one locale explains the citations in a text.
type Match struct {
	Locale *Locale

	// Citations is the number of citations the locale accepts; Candidates
	// is the number of citation-shaped spans in the text.
	Citations  int
	Candidates int

	// Confidence is Citations / Candidates, capped at 1.
	Confidence float64
}

func (m *Match) String() string {
	return fmt.Sprintf("%s: %.1f%% confidence (%d of %d candidates)",
		m.Locale.ID, m.Confidence*100, m.Citations, m.Candidates)
}

// DetectorOptions configures a Detector.
type DetectorOptions struct {
	// MinConfidence drops matches at or below this value (0.0-1.0).
	MinConfidence float64

	// MaxResults limits the number of matches returned (0 = unlimited).
	MaxResults int
}

// DefaultDetectorOptions returns options that keep every locale that
// accepts at least one citation.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{}
}

// Detector guesses the locale of a text from the book names it cites.
type Detector struct {
	catalog *Catalog
	locator *citation.Locator
	options DetectorOptions
}

// NewDetector creates a detector over the locales of catalog.
func NewDetector(catalog *Catalog) *Detector {
	return NewDetectorWithOptions(catalog, DefaultDetectorOptions())
}

// NewDetectorWithOptions creates a detector with custom options.
func NewDetectorWithOptions(catalog *Catalog, options DetectorOptions) *Detector {
	return &Detector{
		catalog: catalog,
		locator: citation.NewLocator(),
		options: options,
	}
}

// Detect scores every locale against text and returns the matches ranked by
// confidence, then citation count, then ID.
func (d *Detector) Detect(text string) []Match {
	candidates := len(d.locator.Locate(text))
	if candidates == 0 {
		return nil
	}

	matches := make([]Match, 0)
	for _, loc := range d.catalog.List() {
		citations := len(loc.Annotator().References(text))
		if citations == 0 {
			continue
		}

		confidence := float64(citations) / float64(candidates)
		if confidence > 1 {
			confidence = 1
		}
		if confidence <= d.options.MinConfidence {
			continue
		}

		matches = append(matches, Match{
			Locale:     loc,
			Citations:  citations,
			Candidates: candidates,
			Confidence: confidence,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].Citations != matches[j].Citations {
			return matches[i].Citations > matches[j].Citations
		}
		return matches[i].Locale.ID < matches[j].Locale.ID
	})

	if d.options.MaxResults > 0 && len(matches) > d.options.MaxResults {
		matches = matches[:d.options.MaxResults]
	}

	return matches
}

// DetectBest returns the best matching locale, or nil when no locale accepts
// any citation in text.
func (d *Detector) DetectBest(text string) *Match {
	matches := d.Detect(text)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}
