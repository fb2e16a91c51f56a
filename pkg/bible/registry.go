package bible

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves book tokens for one locale. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	locale   string
	books    []Book         // canonical order, books[i].Index == i+1
	keys     map[string]int // folded name or alias -> position in books
	maxWords int
}

// NewRegistry builds a registry from books in any order.
// Returns an error if the list is empty, indices are not exactly 1..n, a
// canonical name repeats, or two books share a folded name or alias.
func NewRegistry(locale string, books []Book) (*Registry, error) {
	if len(books) == 0 {
		return nil, fmt.Errorf("locale %s: book list cannot be empty", locale)
	}

	ordered := make([]Book, len(books))
	for _, book := range books {
		if book.Index < 1 || book.Index > len(books) {
			return nil, fmt.Errorf("locale %s: book %q has index %d outside 1..%d",
				locale, book.Name, book.Index, len(books))
		}
		if !ordered[book.Index-1].IsZero() {
			return nil, fmt.Errorf("locale %s: index %d assigned to both %q and %q",
				locale, book.Index, ordered[book.Index-1].Name, book.Name)
		}
		if strings.TrimSpace(book.Name) == "" {
			return nil, fmt.Errorf("locale %s: book %d has an empty name", locale, book.Index)
		}
		book.Name = strings.ToLower(strings.TrimSpace(book.Name))
		book.Aliases = append([]string(nil), book.Aliases...)
		ordered[book.Index-1] = book
	}

	registry := &Registry{
		locale: locale,
		books:  ordered,
		keys:   make(map[string]int, len(ordered)*4),
	}

	for position, book := range ordered {
		for _, name := range book.Names() {
			key := Fold(name)
			if key == "" {
				return nil, fmt.Errorf("locale %s: book %q has an empty alias", locale, book.Name)
			}
			if owner, exists := registry.keys[key]; exists {
				if owner == position {
					continue // "Génesis" and "Genesis" fold to the same key
				}
				return nil, fmt.Errorf("locale %s: alias %q claimed by both %q and %q",
					locale, name, ordered[owner].Name, book.Name)
			}
			registry.keys[key] = position
			if words := wordCount(key); words > registry.maxWords {
				registry.maxWords = words
			}
		}
	}

	return registry, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for
// package-level tables known to be valid.
func MustRegistry(locale string, books []Book) *Registry {
	registry, err := NewRegistry(locale, books)
	if err != nil {
		panic(err)
	}
	return registry
}

// Locale returns the locale ID the registry was built for.
func (r *Registry) Locale() string {
	return r.locale
}

// Resolve returns the book whose canonical name or alias equals token after
// folding. There is no fuzzy or prefix matching.
func (r *Registry) Resolve(token string) (Book, error) {
	position, ok := r.keys[Fold(token)]
	if !ok {
		return Book{}, &BookNotFoundError{Token: token, Locale: r.locale}
	}
	return r.books[position], nil
}

// IndexOf returns the canonical book number for token.
func (r *Registry) IndexOf(token string) (int, error) {
	book, err := r.Resolve(token)
	if err != nil {
		return 0, err
	}
	return book.Index, nil
}

// IsValid reports whether token resolves to a book.
func (r *Registry) IsValid(token string) bool {
	_, err := r.Resolve(token)
	return err == nil
}

// Book returns the book with the given canonical index.
func (r *Registry) Book(index int) (Book, bool) {
	if index < 1 || index > len(r.books) {
		return Book{}, false
	}
	return r.books[index-1], true
}

// Books returns a copy of all books in canonical order.
func (r *Registry) Books() []Book {
	books := make([]Book, len(r.books))
	copy(books, r.books)
	return books
}

// Len returns the number of books.
func (r *Registry) Len() int {
	return len(r.books)
}

// MaxWords returns the largest number of words in any name or alias.
func (r *Registry) MaxWords() int {
	return r.maxWords
}

// Keys returns every folded lookup key in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.keys))
	for key := range r.keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
