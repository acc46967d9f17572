// Package search fetches article pages from the publisher's hosted search
// index over its JSON query API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const defaultTimeout = 30 * time.Second

// Config controls the search fetcher.
type Config struct {
	BaseURL   string
	AppID     string
	APIKey    string
	Index     string
	Query     string
	Filters   string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements ingest.Fetcher against the search index.
type Fetcher struct {
	client *resty.Client
	path   string
	cfg    Config
}

// New builds a Fetcher. BaseURL and Index are required.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("search base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse search base url: %w", err)
	}
	if cfg.Index == "" {
		return nil, errors.New("search index is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.AppID != "" {
		client.SetHeader("X-Algolia-Application-Id", cfg.AppID)
	}
	if cfg.APIKey != "" {
		client.SetHeader("X-Algolia-API-Key", cfg.APIKey)
	}

	return &Fetcher{
		client: client,
		path:   "/1/indexes/" + url.PathEscape(cfg.Index) + "/query",
		cfg:    cfg,
	}, nil
}

type queryRequest struct {
	Query   string `json:"query"`
	Filters string `json:"filters,omitempty"`
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
}

type queryResponse struct {
	Hits []hit `json:"hits"`
}

type hit struct {
	ObjectID  string               `json:"objectID"`
	Title     string               `json:"title"`
	URL       string               `json:"url"`
	Date      string               `json:"date"`
	SortDate  flexDate             `json:"sortDate"`
	Authors   []string             `json:"authors"`
	Byline    []ingest.BylineEntry `json:"byline"`
	Faculty   []string             `json:"faculty"`
	Thumbnail flexImage            `json:"thumbnail"`
	Topics    []any                `json:"topics"`
	Summary   string               `json:"summary"`
}

// FetchPage returns the hits at [offset, offset+size).
func (f *Fetcher) FetchPage(ctx context.Context, offset, size int) ([]ingest.RawEntry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("page size must be > 0, got %d", size)
	}
	res, err := f.client.R().
		SetContext(ctx).
		SetBody(queryRequest{
			Query:   f.cfg.Query,
			Filters: f.cfg.Filters,
			Offset:  offset,
			Length:  size,
		}).
		Post(f.path)
	if err != nil {
		return nil, ingest.TransportError("search query", err)
	}
	if res.IsError() {
		return nil, ingest.NewStatusError("search query", res.StatusCode(), res.Body())
	}

	var decoded queryResponse
	if err := json.Unmarshal(res.Body(), &decoded); err != nil {
		return nil, ingest.TransportError("decode search response", err)
	}

	entries := make([]ingest.RawEntry, 0, len(decoded.Hits))
	for _, h := range decoded.Hits {
		entries = append(entries, h.entry())
	}
	if len(entries) > size {
		entries = entries[:size]
	}
	return entries, nil
}

func (h hit) entry() ingest.RawEntry {
	return ingest.RawEntry{
		ID:        h.ObjectID,
		Title:     h.Title,
		URL:       h.URL,
		Date:      h.Date,
		SortDate:  string(h.SortDate),
		Authors:   h.Authors,
		Byline:    h.Byline,
		Faculty:   h.Faculty,
		Thumbnail: string(h.Thumbnail),
		Topics:    h.Topics,
		Summary:   h.Summary,
	}
}

// flexDate accepts a date string or unix seconds. Seconds are rendered as
// RFC 3339 in UTC.
type flexDate string

func (d *flexDate) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode sortDate: %w", err)
	}
	switch v := raw.(type) {
	case string:
		*d = flexDate(v)
	case float64:
		*d = flexDate(time.Unix(int64(v), 0).UTC().Format(time.RFC3339))
	default:
		*d = ""
	}
	return nil
}

// flexImage accepts a URL string or an object carrying src or url.
type flexImage string

func (i *flexImage) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode thumbnail: %w", err)
	}
	switch v := raw.(type) {
	case string:
		*i = flexImage(v)
	case map[string]any:
		for _, key := range []string{"src", "url"} {
			if s, ok := v[key].(string); ok && s != "" {
				*i = flexImage(s)
				return nil
			}
		}
		*i = ""
	default:
		*i = ""
	}
	return nil
}

