package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/knowledge-sync/internal/clock"
	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const testOrigin = "https://www.library.hbs.edu"

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sortDate  string
		humanDate string
		want      string
		reason    string
	}{
		{name: "iso sort date", sortDate: "2024-03-04", want: "2024-03-04"},
		{name: "rfc3339 sort date", sortDate: "2024-03-04T15:00:00Z", want: "2024-03-04"},
		{name: "iso prefix", sortDate: "2024-03-04T15:00:00.000+0000", want: "2024-03-04"},
		{name: "human date", humanDate: "March 4, 2024", want: "2024-03-04"},
		{name: "abbreviated month", humanDate: "Mar 4, 2024", want: "2024-03-04"},
		{name: "sort date wins", sortDate: "2023-01-02", humanDate: "March 4, 2024", want: "2023-01-02"},
		{name: "bad sort date uses human", sortDate: "soon", humanDate: "March 4, 2024", want: "2024-03-04"},
		{name: "missing", reason: ReasonMissing},
		{name: "whitespace only", sortDate: "  ", humanDate: "\t", reason: ReasonMissing},
		{name: "malformed", humanDate: "Sometime in March", reason: ReasonUnparseable},
		{name: "impossible date", sortDate: "2024-13-45", reason: ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseDate(tt.sortDate, tt.humanDate)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.reason != "", got.Fallback)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func FuzzParseDateNeverPanics(f *testing.F) {
	for _, seed := range []string{"March 4, 2024", "2024-03-04", "", "13/13/13", "2024-02-30T"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		got := ParseDate(raw, raw)
		if got.Fallback && got.Value != "" {
			t.Fatalf("fallback for %q carried value %q", raw, got.Value)
		}
		if !got.Fallback && len(got.Value) != len(isoDate) {
			t.Fatalf("ParseDate(%q) = %q, want YYYY-MM-DD", raw, got.Value)
		}
	})
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"//img.example.com/a/b.jpg", "https://img.example.com/a/b.jpg"},
		{"/working-knowledge/some-article", testOrigin + "/working-knowledge/some-article"},
		{"working-knowledge/some-article", testOrigin + "/working-knowledge/some-article"},
		{"https://hbswk.hbs.edu/item/x", "https://hbswk.hbs.edu/item/x"},
		{"  http://example.com/x  ", "http://example.com/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AbsoluteURL(testOrigin+"/", tt.raw), "raw=%q", tt.raw)
	}
}

func TestJoinAuthors(t *testing.T) {
	t.Parallel()

	byline := []ingest.BylineEntry{{Label: "Jane Doe"}, {Label: " "}, {Label: "John Roe"}}
	assert.Equal(t, "Ann Lee, Bo Kim", JoinAuthors([]string{"Ann Lee", "", "Bo Kim"}, byline))
	assert.Equal(t, "Jane Doe, John Roe", JoinAuthors(nil, byline))
	assert.Equal(t, "Jane Doe, John Roe", JoinAuthors([]string{" "}, byline))
	assert.Empty(t, JoinAuthors(nil, nil))
}

func TestNormalizeFullEntry(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := New(testCategories(t), testOrigin, clock.Fixed{At: at})

	got := n.Normalize(ingest.RawEntry{
		ID:        "obj-1",
		Title:     "  Why Leaders Fail ",
		URL:       "/working-knowledge/why-leaders-fail",
		Date:      "March 4, 2024",
		Authors:   []string{"Ann Lee"},
		Faculty:   []string{"Ann Lee", "Bo Kim"},
		Thumbnail: "//images.example.com/lead.jpg",
		Topics:    []any{"Leadership", "Generative AI", "Ethics"},
		Summary:   "A summary.",
	})

	require.Empty(t, got.Fallbacks)
	assert.Equal(t, ingest.Record{
		ObjectID:    "obj-1",
		Title:       "Why Leaders Fail",
		Date:        "2024-03-04",
		Author:      "Ann Lee",
		Faculty:     "Ann Lee, Bo Kim",
		Summary:     "A summary.",
		URL:         testOrigin + "/working-knowledge/why-leaders-fail",
		Image:       "https://images.example.com/lead.jpg",
		Categories:  []string{"Leadership", "Ethics"},
		NewCategory: "Generative AI",
		IngestedAt:  "2025-01-02T03:04:05Z",
	}, got.Record)
}

func TestNormalizeSparseEntryRecordsFallbacks(t *testing.T) {
	t.Parallel()

	n := New(testCategories(t), testOrigin, clock.Fixed{At: time.Unix(0, 0).UTC()})
	got := n.Normalize(ingest.RawEntry{
		Title:  "Untitled",
		Date:   "last Tuesday",
		Topics: []any{"Crypto", 12},
	})

	assert.Empty(t, got.Record.Date)
	assert.Empty(t, got.Record.Author)
	assert.Empty(t, got.Record.Image)
	assert.Empty(t, got.Record.NewCategory)
	assert.Equal(t, []string{"Strategy and Innovation"}, got.Record.Categories)
	assert.Equal(t, []Fallback{
		{Field: FieldDate, Reason: ReasonUnparseable, Raw: "last Tuesday"},
		{Field: FieldURL, Reason: ReasonMissing},
		{Field: FieldCategories, Reason: ReasonNoCanonical},
	}, got.Fallbacks)
}

func TestNormalizeBlankTopicsStayOutOfNewCategory(t *testing.T) {
	t.Parallel()

	n := New(testCategories(t), testOrigin, clock.Fixed{At: time.Unix(0, 0).UTC()})
	got := n.Normalize(ingest.RawEntry{
		ID:     "a",
		URL:    "/a",
		Topics: []any{"Finance", "  ", ""},
	})
	assert.Equal(t, []string{"Finance"}, got.Record.Categories)
	assert.Empty(t, got.Record.NewCategory)

	got = n.Normalize(ingest.RawEntry{ID: "b", URL: "/b", Topics: []any{"", "AI", "Ethics", " "}})
	assert.Equal(t, "AI", got.Record.NewCategory, "no empty members around the novel label")
}

func TestNormalizeIsRepeatable(t *testing.T) {
	t.Parallel()

	n := New(testCategories(t), testOrigin, clock.Fixed{At: time.Unix(100, 0).UTC()})
	entry := ingest.RawEntry{ID: "a", Topics: []any{"Finance", "AI"}}

	first := n.Normalize(entry)
	second := n.Normalize(entry)
	assert.Equal(t, first, second)
	assert.Equal(t, []any{"Finance", "AI"}, entry.Topics, "input must not be mutated")
}
