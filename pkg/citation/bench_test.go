package citation_test

import (
	"strings"
	"testing"
)

func BenchmarkIsScripture(b *testing.B) {
	parser := english.Annotator().Parser()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		parser.IsScripture("John 3:16")
	}
}

func BenchmarkScriptures(b *testing.B) {
	text := strings.Repeat("Two popular scriptures are Genesis 1:1 and John 3:16, but Mary 2:23 is not. ", 100)
	annotator := english.Annotator()

	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		annotator.Scriptures(text)
	}
}

func BenchmarkSurround(b *testing.B) {
	text := strings.Repeat("All friends should practice Proverbs 17:17-19! ", 100)
	annotator := english.Annotator()

	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		annotator.Surround(text, "<bold>", "</bold>")
	}
}
