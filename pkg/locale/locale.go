// Package locale provides the pluggable locale catalog: book registries and
// study-site URL templates loaded from YAML definitions.
package locale

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/scriptura/pkg/bible"
	"github.com/coolbeans/scriptura/pkg/citation"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en_us"

// DefaultSite is the study site used when no site is configured.
const DefaultSite = "JwOrg"

var (
	// ErrLocaleNotFound is returned when a locale ID is not in the catalog.
	ErrLocaleNotFound = errors.New("locale not found")

	// ErrSiteNotFound is returned when a locale has no site with the given name.
	ErrSiteNotFound = errors.New("site not found")

	// ErrAlreadyWatching is returned by Watch when a watcher is running.
	ErrAlreadyWatching = errors.New("locale directory is already being watched")
)

// Definition is the YAML form of a locale.
type Definition struct {
	ID      string          `yaml:"id" json:"id"`
	Name    string          `yaml:"name" json:"name"`
	Version string          `yaml:"version" json:"version"`
	Sites   []citation.Site `yaml:"sites" json:"sites"`
	Books   []bible.Book    `yaml:"books" json:"books"`
}

// ParseDefinition decodes a YAML locale definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &def, nil
}

// Locale is a compiled definition: a book registry plus named sites.
// Immutable and safe for concurrent use.
type Locale struct {
	ID      string
	Name    string
	Version string

	registry *bible.Registry
	sites    map[string]citation.Site

	annotatorOnce sync.Once
	annotator     *citation.Annotator
}

// Compile validates def and builds the locale.
func Compile(def *Definition) (*Locale, error) {
	if def == nil {
		return nil, fmt.Errorf("definition cannot be nil")
	}
	if errs := ValidateDefinition(def); len(errs) > 0 {
		return nil, fmt.Errorf("invalid locale %q: %w", def.ID, errs)
	}

	registry, err := bible.NewRegistry(def.ID, def.Books)
	if err != nil {
		return nil, fmt.Errorf("building book registry: %w", err)
	}

	sites := make(map[string]citation.Site, len(def.Sites))
	for _, site := range def.Sites {
		sites[strings.ToLower(site.Name)] = site
	}

	return &Locale{
		ID:       def.ID,
		Name:     def.Name,
		Version:  def.Version,
		registry: registry,
		sites:    sites,
	}, nil
}

// Registry returns the locale's book registry.
func (l *Locale) Registry() *bible.Registry {
	return l.registry
}

// Site returns the named site. Names are matched case-insensitively.
func (l *Locale) Site(name string) (citation.Site, error) {
	site, ok := l.sites[strings.ToLower(name)]
	if !ok {
		return citation.Site{}, fmt.Errorf("%w: %q in locale %s", ErrSiteNotFound, name, l.ID)
	}
	return site, nil
}

// Sites returns the locale's sites sorted by name.
func (l *Locale) Sites() []citation.Site {
	sites := make([]citation.Site, 0, len(l.sites))
	for _, site := range l.sites {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].Name < sites[j].Name
	})
	return sites
}

// Annotator returns the locale's shared annotator, built on first use.
func (l *Locale) Annotator() *citation.Annotator {
	l.annotatorOnce.Do(func() {
		l.annotator = citation.NewAnnotator(l.registry)
	})
	return l.annotator
}

// NewAnnotator builds an annotator with custom options, e.g. a logger.
func (l *Locale) NewAnnotator(opts ...citation.AnnotatorOption) *citation.Annotator {
	return citation.NewAnnotator(l.registry, opts...)
}

func (l *Locale) String() string {
	return fmt.Sprintf("%s (%s)", l.ID, l.Name)
}
