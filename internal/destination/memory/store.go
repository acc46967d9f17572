// Package memory provides an in-memory destination for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const defaultPageSize = 100

// Store keeps records in insertion order. Like the real table it enforces no
// uniqueness on object IDs.
type Store struct {
	mu       sync.RWMutex
	records  []ingest.Record
	keys     []string
	pageSize int
}

// NewStore constructs a Store that lists keys pageSize at a time.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{pageSize: pageSize}
}

// Seed registers identifiers as already stored without creating records.
func (s *Store) Seed(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, keys...)
}

// ListKeys returns one page of stored identifiers. The token is the offset of
// the next page.
func (s *Store) ListKeys(_ context.Context, token string) (ingest.KeyPage, error) {
	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return ingest.KeyPage{}, fmt.Errorf("invalid continuation token %q", token)
		}
		start = n
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start >= len(s.keys) {
		return ingest.KeyPage{}, nil
	}
	end := min(start+s.pageSize, len(s.keys))
	page := ingest.KeyPage{Keys: append([]string(nil), s.keys[start:end]...)}
	if end < len(s.keys) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

// CreateRecord appends record and returns its row ID.
func (s *Store) CreateRecord(_ context.Context, record ingest.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Categories = append([]string(nil), record.Categories...)
	s.records = append(s.records, record)
	if record.ObjectID != "" {
		s.keys = append(s.keys, record.ObjectID)
	}
	return fmt.Sprintf("mem-%d", len(s.records)), nil
}

// Records returns a copy of every created record.
func (s *Store) Records() []ingest.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.Record, len(s.records))
	copy(out, s.records)
	return out
}
