package ingest

import (
	"context"
	"time"
)

// Fetcher retrieves one page of raw entries from the source. An empty page
// signals exhaustion. Implementations apply their own request timeout and
// never retry.
type Fetcher interface {
	FetchPage(ctx context.Context, offset, size int) ([]RawEntry, error)
}

// KeyLister pages through the identifiers already stored in the destination.
// token is empty for the first page.
type KeyLister interface {
	ListKeys(ctx context.Context, token string) (KeyPage, error)
}

// RecordCreator inserts a single record and returns the destination's row ID.
type RecordCreator interface {
	CreateRecord(ctx context.Context, record Record) (string, error)
}

// Destination is a store that can be both listed and written.
type Destination interface {
	KeyLister
	RecordCreator
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
