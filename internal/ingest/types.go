package ingest

import (
	"errors"
	"fmt"
)

// BylineEntry is one labeled item of a byline structure.
type BylineEntry struct {
	Label string `json:"label"`
}

// RawEntry is an article record exactly as the source returned it. Every
// field may be missing; an empty ID means the source carried no identifier.
type RawEntry struct {
	ID        string
	Title     string
	URL       string
	Date      string
	SortDate  string
	Authors   []string
	Byline    []BylineEntry
	Faculty   []string
	Thumbnail string
	// Topics is decoded as-is from the source; non-string members are ignored
	// during classification.
	Topics  []any
	Summary string
}

// Record is an article reshaped into the destination's fixed field set.
type Record struct {
	ObjectID    string   `json:"object_id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Author      string   `json:"author"`
	Faculty     string   `json:"faculty"`
	Summary     string   `json:"summary"`
	URL         string   `json:"url"`
	Image       string   `json:"image"`
	Categories  []string `json:"categories"`
	NewCategory string   `json:"new_category,omitempty"`
	IngestedAt  string   `json:"ingested_at"`
}

// KeyPage is one page of destination identifiers. Next is empty on the last page.
type KeyPage struct {
	Keys []string
	Next string
}

// ErrTransport marks network and non-2xx failures talking to a source or destination.
var ErrTransport = errors.New("transport error")

// StatusError reports a non-2xx HTTP response. It matches ErrTransport.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Is reports whether target is ErrTransport.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

// TransportError wraps err so that it matches ErrTransport.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

const maxErrorBody = 512

// NewStatusError builds a StatusError, keeping at most a short prefix of body.
func NewStatusError(op string, status int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Op: op, Status: status, Body: string(body)}
}
