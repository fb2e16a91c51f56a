package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coolbeans/scriptura/pkg/bible"
	"github.com/coolbeans/scriptura/pkg/citation"
)

//go:embed schema.json
var schemaFS embed.FS

// SchemaVersion is the current locale schema version
const SchemaVersion = "1.0.0"

// ValidationError represents a schema validation error with context
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(errs), strings.Join(messages, "\n  - "))
}

// ValidateDefinition checks a locale definition and returns every problem
// found. Alias collisions are reported by bible.NewRegistry at compile time.
func ValidateDefinition(def *Definition) ValidationErrors {
	var errs ValidationErrors

	if def.ID == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "required field is missing",
		})
	} else if !isValidLocaleID(def.ID) {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "must be lowercase letters with underscores, e.g. en_us",
			Value:   def.ID,
		})
	}

	if def.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "required field is missing",
		})
	}

	if def.Version == "" {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "required field is missing",
		})
	} else if !isValidVersion(def.Version) {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "must be semantic version (e.g., 1.0.0)",
			Value:   def.Version,
		})
	}

	errs = append(errs, validateBooks(def.Books)...)
	errs = append(errs, validateSites(def.Sites)...)

	return errs
}

func validateBooks(books []bible.Book) ValidationErrors {
	var errs ValidationErrors

	if len(books) == 0 {
		errs = append(errs, ValidationError{
			Field:   "books",
			Message: "at least one book is needed",
		})
		return errs
	}
	if len(books) > bible.CanonSize {
		errs = append(errs, ValidationError{
			Field:   "books",
			Message: fmt.Sprintf("at most %d books are allowed", bible.CanonSize),
			Value:   len(books),
		})
	}

	seen := make(map[int]bool, len(books))
	for i, book := range books {
		field := fmt.Sprintf("books[%d]", i)
		if strings.TrimSpace(book.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "required field is missing",
			})
		}
		if book.Index < 1 || book.Index > len(books) {
			errs = append(errs, ValidationError{
				Field:   field + ".index",
				Message: fmt.Sprintf("must be between 1 and %d", len(books)),
				Value:   book.Index,
			})
		} else if seen[book.Index] {
			errs = append(errs, ValidationError{
				Field:   field + ".index",
				Message: "duplicate index",
				Value:   book.Index,
			})
		}
		seen[book.Index] = true

		for j, alias := range book.Aliases {
			if strings.TrimSpace(alias) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.aliases[%d]", field, j),
					Message: "alias cannot be empty",
				})
			}
		}
	}

	return errs
}

func validateSites(sites []citation.Site) ValidationErrors {
	var errs ValidationErrors

	names := make(map[string]bool, len(sites))
	for i, site := range sites {
		field := fmt.Sprintf("sites[%d]", i)
		if site.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "required field is missing",
			})
		} else if names[strings.ToLower(site.Name)] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "duplicate site name",
				Value:   site.Name,
			})
		}
		names[strings.ToLower(site.Name)] = true

		if site.SingleTemplate == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".single",
				Message: "required field is missing",
			})
		} else if !strings.Contains(site.SingleTemplate, citation.PlaceholderVerse) {
			errs = append(errs, ValidationError{
				Field:   field + ".single",
				Message: "template must contain " + citation.PlaceholderVerse,
				Value:   site.SingleTemplate,
			})
		}

		if site.RangeTemplate == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".range",
				Message: "required field is missing",
			})
		} else if strings.Count(site.RangeTemplate, citation.PlaceholderVerse) != 2 {
			errs = append(errs, ValidationError{
				Field:   field + ".range",
				Message: "template must contain " + citation.PlaceholderVerse + " twice",
				Value:   site.RangeTemplate,
			})
		}

		if strings.Contains(site.ChapterTemplate, citation.PlaceholderVerse) {
			errs = append(errs, ValidationError{
				Field:   field + ".chapter",
				Message: "template cannot contain " + citation.PlaceholderVerse,
				Value:   site.ChapterTemplate,
			})
		}
	}

	return errs
}

func isValidLocaleID(id string) bool {
	if len(id) == 0 {
		return false
	}
	// Must start with lowercase letter
	if id[0] < 'a' || id[0] > 'z' {
		return false
	}
	// Rest must be lowercase letters or underscore
	for _, c := range id[1:] {
		if !((c >= 'a' && c <= 'z') || c == '_') {
			return false
		}
	}
	return true
}

func isValidVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if len(part) == 0 {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// GetEmbeddedSchema returns the embedded JSON Schema for locale definitions.
func GetEmbeddedSchema() (map[string]interface{}, error) {
	data, err := schemaFS.ReadFile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing embedded schema: %w", err)
	}

	return schema, nil
}
