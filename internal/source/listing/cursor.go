package listing

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// PageLoader fetches and parses one site page. Pages are numbered from 1.
type PageLoader func(ctx context.Context, page int) ([]ingest.RawEntry, error)

// Cursor maps offset windows onto the listing's own pages, whose length the
// site decides. It buffers loaded teasers so a window that straddles two site
// pages is served whole, and restarts from page 1 when a window begins at 0
// or before what it still holds.
type Cursor struct {
	load PageLoader

	mu       sync.Mutex
	base     int // offset of buffered[0]
	buffered []ingest.RawEntry
	next     int // next site page to load; 0 before the first window
	done     bool
}

// NewCursor builds a cursor over load.
func NewCursor(load PageLoader) *Cursor {
	return &Cursor{load: load}
}

// Window returns the teasers in [offset, offset+size). It is shorter than
// size only when the listing ran out, and empty when offset is past the end.
func (c *Cursor) Window(ctx context.Context, offset, size int) ([]ingest.RawEntry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("page size must be > 0, got %d", size)
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0, got %d", offset)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if offset == 0 || offset < c.base || c.next == 0 {
		c.base, c.buffered, c.next, c.done = 0, nil, 1, false
	}

	for !c.done && c.base+len(c.buffered) < offset+size {
		entries, err := c.load(ctx, c.next)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			c.done = true
			break
		}
		c.buffered = append(c.buffered, entries...)
		c.next++
	}

	// Teasers before offset are never asked for again in this pass.
	if drop := min(offset-c.base, len(c.buffered)); drop > 0 {
		c.buffered = c.buffered[drop:]
		c.base += drop
	}
	if offset > c.base {
		return nil, nil
	}
	n := min(size, len(c.buffered))
	out := make([]ingest.RawEntry, n)
	copy(out, c.buffered[:n])
	return out, nil
}
