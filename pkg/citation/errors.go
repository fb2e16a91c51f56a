package citation

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReference indicates a candidate whose structure could not be
	// extracted. The locator and parser share one grammar, so this should only
	// surface for text handed to Parse directly.
	ErrMalformedReference = errors.New("malformed reference")

	// ErrURLBuild indicates a validated reference that cannot be mapped onto
	// a site's URL templates.
	ErrURLBuild = errors.New("cannot build url")
)

// MalformedReferenceError reports text that does not match the reference grammar.
type MalformedReferenceError struct {
	Raw    string
	Reason string
}

func (e *MalformedReferenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed reference %q: %s", e.Raw, e.Reason)
	}
	return fmt.Sprintf("malformed reference %q", e.Raw)
}

func (e *MalformedReferenceError) Unwrap() error {
	return ErrMalformedReference
}

// URLBuildError reports why a reference could not be turned into a link.
type URLBuildError struct {
	Reference string
	Site      string
	Reason    string
}

func (e *URLBuildError) Error() string {
	return fmt.Sprintf("cannot build %s link for %q: %s", e.Site, e.Reference, e.Reason)
}

func (e *URLBuildError) Unwrap() error {
	return ErrURLBuild
}
