// Package normalizer maps raw source entries onto the destination schema.
//
// Each field is normalized independently. Parse problems never surface as
// errors: the field gets a documented fallback value and the Result lists a
// Fallback entry so callers can log it.
package normalizer

import (
	"strings"
	"time"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// Record field names used in Fallback entries.
const (
	FieldDate       = "date"
	FieldURL        = "url"
	FieldCategories = "categories"
)

// Fallback describes a field that received its fallback value.
type Fallback struct {
	Field  string
	Reason string
	// Raw is the offending source value, if any.
	Raw string
}

// Result is a normalized record together with the fallbacks applied to it.
type Result struct {
	Record    ingest.Record
	Fallbacks []Fallback
}

// Normalizer is stateless apart from its immutable inputs.
type Normalizer struct {
	categories CategorySet
	origin     string
	clock      ingest.Clock
}

// New builds a Normalizer. origin is prefixed to scheme-less URLs.
func New(categories CategorySet, origin string, clock ingest.Clock) *Normalizer {
	return &Normalizer{
		categories: categories,
		origin:     strings.TrimRight(origin, "/"),
		clock:      clock,
	}
}

// Categories exposes the taxonomy the normalizer classifies against.
func (n *Normalizer) Categories() CategorySet {
	return n.categories
}

// Normalize converts entry into a destination record.
func (n *Normalizer) Normalize(entry ingest.RawEntry) Result {
	var fallbacks []Fallback

	date := ParseDate(entry.SortDate, entry.Date)
	if date.Fallback {
		fallbacks = append(fallbacks, Fallback{
			Field:  FieldDate,
			Reason: date.Reason,
			Raw:    firstNonBlank(entry.SortDate, entry.Date),
		})
	}

	articleURL := AbsoluteURL(n.origin, entry.URL)
	if articleURL == "" {
		fallbacks = append(fallbacks, Fallback{Field: FieldURL, Reason: ReasonMissing})
	}

	class := n.categories.Classify(entry.Topics)
	if class.Fallback {
		fallbacks = append(fallbacks, Fallback{Field: FieldCategories, Reason: ReasonNoCanonical})
	}

	record := ingest.Record{
		ObjectID:    entry.ID,
		Title:       strings.TrimSpace(entry.Title),
		Date:        date.Value,
		Author:      JoinAuthors(entry.Authors, entry.Byline),
		Faculty:     strings.Join(nonBlank(entry.Faculty), ", "),
		Summary:     strings.TrimSpace(entry.Summary),
		URL:         articleURL,
		Image:       AbsoluteURL(n.origin, entry.Thumbnail),
		Categories:  class.Categories,
		NewCategory: strings.Join(class.New, ", "),
		IngestedAt:  n.now().Format(time.RFC3339),
	}
	return Result{Record: record, Fallbacks: fallbacks}
}

func (n *Normalizer) now() time.Time {
	if n.clock == nil {
		return time.Now().UTC()
	}
	return n.clock.Now()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
