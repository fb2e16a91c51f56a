package locale

import (
	"strings"
	"testing"

	"github.com/coolbeans/scriptura/pkg/bible"
	"github.com/coolbeans/scriptura/pkg/citation"
)

func validDefinition() *Definition {
	return &Definition{
		ID:      "xx_test",
		Name:    "Test",
		Version: "1.0.0",
		Books: []bible.Book{
			{Index: 1, Name: "alpha"},
			{Index: 2, Name: "beta", Aliases: []string{"be"}},
		},
		Sites: []citation.Site{{
			Name:            "Example",
			SingleTemplate:  "https://example.org/{BOOKNAME}/{CHAPTER}#{VERSE}",
			RangeTemplate:   "https://example.org/{BOOKNAME}/{CHAPTER}#{VERSE}-{VERSE}",
			ChapterTemplate: "https://example.org/{BOOKNAME}/{CHAPTER}",
		}},
	}
}

func TestValidateDefinitionValid(t *testing.T) {
	if errs := ValidateDefinition(validDefinition()); len(errs) != 0 {
		t.Errorf("ValidateDefinition() = %v, want no errors", errs)
	}
}

func TestValidateDefinitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(def *Definition)
		field  string
	}{
		{"missing id", func(def *Definition) { def.ID = "" }, "id"},
		{"bad id", func(def *Definition) { def.ID = "EN-US" }, "id"},
		{"missing name", func(def *Definition) { def.Name = "" }, "name"},
		{"missing version", func(def *Definition) { def.Version = "" }, "version"},
		{"bad version", func(def *Definition) { def.Version = "v1" }, "version"},
		{"no books", func(def *Definition) { def.Books = nil }, "books"},
		{"empty book name", func(def *Definition) { def.Books[0].Name = " " }, "books[0].name"},
		{"index out of range", func(def *Definition) { def.Books[1].Index = 7 }, "books[1].index"},
		{"duplicate index", func(def *Definition) { def.Books[1].Index = 1 }, "books[1].index"},
		{"empty alias", func(def *Definition) { def.Books[1].Aliases = []string{""} }, "books[1].aliases[0]"},
		{"missing site name", func(def *Definition) { def.Sites[0].Name = "" }, "sites[0].name"},
		{"duplicate site", func(def *Definition) {
			dup := def.Sites[0]
			dup.Name = "EXAMPLE"
			def.Sites = append(def.Sites, dup)
		}, "sites[1].name"},
		{"missing single", func(def *Definition) { def.Sites[0].SingleTemplate = "" }, "sites[0].single"},
		{"single without verse", func(def *Definition) { def.Sites[0].SingleTemplate = "https://example.org" }, "sites[0].single"},
		{"range with one verse", func(def *Definition) { def.Sites[0].RangeTemplate = "https://example.org/{VERSE}" }, "sites[0].range"},
		{"chapter with verse", func(def *Definition) { def.Sites[0].ChapterTemplate = "https://example.org/{VERSE}" }, "sites[0].chapter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := validDefinition()
			tc.modify(def)

			errs := ValidateDefinition(def)
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}

			found := false
			for _, err := range errs {
				if err.Field == tc.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "no errors" {
		t.Errorf("Error() = %q", got)
	}

	one := ValidationErrors{{Field: "id", Message: "required field is missing"}}
	if got := one.Error(); got != "id: required field is missing" {
		t.Errorf("Error() = %q", got)
	}

	two := ValidationErrors{
		{Field: "id", Message: "bad", Value: "X"},
		{Field: "name", Message: "required field is missing"},
	}
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "id: bad (got: X)") {
		t.Errorf("Error() = %q", got)
	}
}

func TestGetEmbeddedSchema(t *testing.T) {
	schema, err := GetEmbeddedSchema()
	if err != nil {
		t.Fatalf("GetEmbeddedSchema() error = %v", err)
	}
	if schema["title"] != "Scriptura locale definition" {
		t.Errorf("title = %v", schema["title"])
	}
}
