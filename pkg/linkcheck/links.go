package linkcheck

import (
	"github.com/coolbeans/scriptura/pkg/citation"
)

// LinksFromReferences builds one LinkInput per reference. References the site
// cannot link carry the build error instead of a URI.
func LinksFromReferences(refs []*citation.Reference, site citation.Site) []LinkInput {
	links := make([]LinkInput, 0, len(refs))
	for _, ref := range refs {
		link := LinkInput{Citation: ref.Raw}
		uri, err := site.URL(ref)
		if err != nil {
			link.BuildError = err.Error()
		} else {
			link.URI = uri
		}
		links = append(links, link)
	}
	return links
}

// LinksFromText finds the citations in text and builds their links.
func LinksFromText(annotator *citation.Annotator, text string, site citation.Site) []LinkInput {
	return LinksFromReferences(annotator.References(text), site)
}

// Dedupe drops repeated URIs, keeping the first citation for each. Inputs
// with a build error are always kept.
func Dedupe(links []LinkInput) []LinkInput {
	seen := make(map[string]bool, len(links))
	unique := make([]LinkInput, 0, len(links))
	for _, link := range links {
		if link.BuildError == "" {
			if seen[link.URI] {
				continue
			}
			seen[link.URI] = true
		}
		unique = append(unique, link)
	}
	return unique
}
