package normalizer

import (
	"errors"
	"sort"
	"strings"
)

// CategorySet is the immutable canonical taxonomy plus the sentinel used when
// nothing matches. The zero value matches nothing and falls back to DefaultFallback.
type CategorySet struct {
	labels   map[string]struct{}
	fallback string
}

// Classification is the outcome of matching raw topics against a CategorySet.
type Classification struct {
	// Categories holds the canonical topics in source order, or exactly the
	// sentinel when no topic matched.
	Categories []string
	// New holds string topics outside the taxonomy. It is always empty when
	// Fallback is set.
	New      []string
	Fallback bool
}

// NewCategorySet copies labels into a new set. Blank labels are dropped.
func NewCategorySet(labels []string, fallback string) (CategorySet, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return CategorySet{}, errors.New("fallback category is required")
	}
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		set[label] = struct{}{}
	}
	if len(set) == 0 {
		return CategorySet{}, errors.New("category set is empty")
	}
	return CategorySet{labels: set, fallback: fallback}, nil
}

// DefaultCategorySet returns the built-in taxonomy with DefaultFallback.
func DefaultCategorySet() CategorySet {
	set, _ := NewCategorySet(defaultTaxonomy, DefaultFallback)
	return set
}

// Contains reports whether label is canonical. Matching is exact and case-sensitive.
func (c CategorySet) Contains(label string) bool {
	_, ok := c.labels[label]
	return ok
}

// Fallback returns the sentinel category.
func (c CategorySet) Fallback() string {
	if c.fallback == "" {
		return DefaultFallback
	}
	return c.fallback
}

// Len returns the number of canonical labels.
func (c CategorySet) Len() int {
	return len(c.labels)
}

// Labels returns the canonical labels sorted alphabetically.
func (c CategorySet) Labels() []string {
	out := make([]string, 0, len(c.labels))
	for label := range c.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Classify splits raw topics into canonical and novel labels. Non-string and
// blank or whitespace-only members are ignored: they are neither canonical nor
// a new-category signal, so an empty overline link never shows up as an empty
// entry in NewCategory.
func (c CategorySet) Classify(topics []any) Classification {
	var canonical, novel []string
	for _, topic := range topics {
		label, ok := topic.(string)
		if !ok || strings.TrimSpace(label) == "" {
			continue
		}
		if c.Contains(label) {
			canonical = append(canonical, label)
			continue
		}
		novel = append(novel, label)
	}
	if len(canonical) == 0 {
		return Classification{Categories: []string{c.Fallback()}, Fallback: true}
	}
	return Classification{Categories: canonical, New: novel}
}
