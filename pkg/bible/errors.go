package bible

import (
	"errors"
	"fmt"
)

// ErrBookNotFound is the sentinel matched by errors.Is for unresolvable book tokens.
var ErrBookNotFound = errors.New("book not found")

// BookNotFoundError reports a token that is neither a canonical name nor an alias
// in the registry of the given locale. Token keeps the casing found in the source.
type BookNotFoundError struct {
	Token  string
	Locale string
}

func (e *BookNotFoundError) Error() string {
	if e.Locale != "" {
		return fmt.Sprintf("the Bible book, %s, was not found in locale %s", e.Token, e.Locale)
	}
	return fmt.Sprintf("the Bible book, %s, was not found", e.Token)
}

func (e *BookNotFoundError) Unwrap() error {
	return ErrBookNotFound
}
