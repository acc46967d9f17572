// Package index loads the set of identifiers already present in the
// destination so the coordinator can skip articles it has stored before.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// maxPages bounds the continuation loop against a destination that keeps
// returning the same token.
const maxPages = 100_000

// KeySet is a set of destination identifiers. It is not safe for concurrent use.
type KeySet struct {
	keys map[string]struct{}
}

// NewKeySet builds a KeySet from keys.
func NewKeySet(keys ...string) *KeySet {
	s := &KeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Contains reports whether key is present.
func (s *KeySet) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Add inserts key. Empty keys are ignored.
func (s *KeySet) Add(key string) {
	if key == "" {
		return
	}
	s.keys[key] = struct{}{}
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Clone returns an independent copy.
func (s *KeySet) Clone() *KeySet {
	out := &KeySet{keys: make(map[string]struct{}, s.Len())}
	if s != nil {
		for k := range s.keys {
			out.keys[k] = struct{}{}
		}
	}
	return out
}

// Loader pages through a KeyLister once.
type Loader struct {
	lister ingest.KeyLister
	logger *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(lister ingest.KeyLister, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{lister: lister, logger: logger}
}

// Load reads every page until the destination stops returning a continuation
// token. Any failure aborts the load; a partial set is never returned.
func (l *Loader) Load(ctx context.Context) (*KeySet, error) {
	if l.lister == nil {
		return nil, errors.New("key lister is required")
	}
	set := NewKeySet()
	token := ""
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("key listing exceeded %d pages", maxPages)
		}
		result, err := l.lister.ListKeys(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("list keys page %d: %w", page, err)
		}
		for _, key := range result.Keys {
			set.Add(key)
		}
		l.logger.Debug("key page loaded",
			zap.Int("page", page),
			zap.Int("keys", len(result.Keys)),
			zap.Bool("more", result.Next != ""),
		)
		if result.Next == "" {
			break
		}
		if result.Next == token {
			return nil, fmt.Errorf("key listing repeated continuation token %q", token)
		}
		token = result.Next
	}
	l.logger.Info("existing-key index loaded", zap.Int("keys", set.Len()))
	return set, nil
}
