package normalizer

import (
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// Fallback reasons.
const (
	ReasonMissing     = "missing"
	ReasonUnparseable = "unparseable"
	ReasonNoCanonical = "no canonical category"
)

// FieldResult is a normalized value that is either the real value or a
// documented fallback with the reason it was used.
type FieldResult[T any] struct {
	Value    T
	Fallback bool
	Reason   string
}

func valueOf[T any](v T) FieldResult[T] {
	return FieldResult[T]{Value: v}
}

func fallbackOf[T any](v T, reason string) FieldResult[T] {
	return FieldResult[T]{Value: v, Fallback: true, Reason: reason}
}

const isoDate = "2006-01-02"

var dateLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 January 2006",
}

// ParseDate converts the sort date or, failing that, the human date into a
// YYYY-MM-DD string. On failure the value is empty and the result is a fallback.
func ParseDate(sortDate, humanDate string) FieldResult[string] {
	candidates := make([]string, 0, 2)
	for _, raw := range []string{sortDate, humanDate} {
		if raw = strings.TrimSpace(raw); raw != "" {
			candidates = append(candidates, raw)
		}
	}
	if len(candidates) == 0 {
		return fallbackOf("", ReasonMissing)
	}
	for _, raw := range candidates {
		if t, ok := parseDate(raw); ok {
			return valueOf(t.Format(isoDate))
		}
	}
	return fallbackOf("", ReasonUnparseable)
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	// "2024-03-04T10:00:00.000+0000" and similar: keep the calendar prefix.
	if len(raw) > len(isoDate) {
		if t, err := time.Parse(isoDate, raw[:len(isoDate)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// JoinAuthors prefers the explicit author list and falls back to byline labels.
func JoinAuthors(authors []string, byline []ingest.BylineEntry) string {
	names := nonBlank(authors)
	if len(names) == 0 {
		labels := make([]string, 0, len(byline))
		for _, entry := range byline {
			labels = append(labels, entry.Label)
		}
		names = nonBlank(labels)
	}
	return strings.Join(names, ", ")
}

// AbsoluteURL resolves raw against origin. Protocol-relative references get
// "https:"; references without a scheme get the origin prefix.
func AbsoluteURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return strings.TrimRight(origin, "/") + raw
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
