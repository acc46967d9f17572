package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const hitsBody = `{"hits":[
 {"objectID":"a1","title":"Pricing Power","url":"/working-knowledge/pricing-power",
  "date":"March 4, 2024","sortDate":1709510400,"authors":["Ada Lovelace"],
  "faculty":["Ada Lovelace"],"thumbnail":{"src":"//cdn.example.com/a1.jpg"},
  "topics":["Pricing", 7, "Marketing"],"summary":"How firms price."},
 {"objectID":"a2","title":"Quiet Leaders","sortDate":"2024-02-01","byline":[{"label":"Grace Hopper"}],
  "thumbnail":"/images/a2.png"}
]}`

func TestFetchPageSendsQueryAndDecodesHits(t *testing.T) {
	t.Parallel()

	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/1/indexes/articles/query", r.URL.Path)
		assert.Equal(t, "app", r.Header.Get("X-Algolia-Application-Id"))
		assert.Equal(t, "key", r.Header.Get("X-Algolia-API-Key"))
		assert.Equal(t, "knowledgesync-test", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(hitsBody))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{
		BaseURL:   srv.URL,
		AppID:     "app",
		APIKey:    "key",
		Index:     "articles",
		Filters:   "collection:strategy",
		UserAgent: "knowledgesync-test",
	})
	require.NoError(t, err)

	entries, err := f.FetchPage(context.Background(), 20, 10)
	require.NoError(t, err)
	assert.Equal(t, queryRequest{Filters: "collection:strategy", Offset: 20, Length: 10}, got)

	require.Len(t, entries, 2)
	assert.Equal(t, ingest.RawEntry{
		ID:        "a1",
		Title:     "Pricing Power",
		URL:       "/working-knowledge/pricing-power",
		Date:      "March 4, 2024",
		SortDate:  "2024-03-04T00:00:00Z",
		Authors:   []string{"Ada Lovelace"},
		Faculty:   []string{"Ada Lovelace"},
		Thumbnail: "//cdn.example.com/a1.jpg",
		Topics:    []any{"Pricing", float64(7), "Marketing"},
		Summary:   "How firms price.",
	}, entries[0])
	assert.Equal(t, "2024-02-01", entries[1].SortDate)
	assert.Equal(t, []ingest.BylineEntry{{Label: "Grace Hopper"}}, entries[1].Byline)
	assert.Equal(t, "/images/a2.png", entries[1].Thumbnail)
}

func TestFetchPageTruncatesOversizedPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(hitsBody))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{BaseURL: srv.URL, Index: "articles"})
	require.NoError(t, err)
	entries, err := f.FetchPage(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].ID)
}

func TestFetchPageEmptyHitsMeansExhausted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hits":[]}`))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{BaseURL: srv.URL, Index: "articles"})
	require.NoError(t, err)
	entries, err := f.FetchPage(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchPageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
			status: http.StatusForbidden,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"hits":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			f, err := New(Config{BaseURL: srv.URL, Index: "articles"})
			require.NoError(t, err)
			_, err = f.FetchPage(context.Background(), 0, 10)
			require.ErrorIs(t, err, ingest.ErrTransport)
			if tt.status != 0 {
				var statusErr *ingest.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.status, statusErr.Status)
			}
		})
	}
}

func TestFetchPageNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	f, err := New(Config{BaseURL: base, Index: "articles", Timeout: time.Second})
	require.NoError(t, err)
	_, err = f.FetchPage(context.Background(), 0, 10)
	require.ErrorIs(t, err, ingest.ErrTransport)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Index: "articles"})
	require.ErrorContains(t, err, "base url")
	_, err = New(Config{BaseURL: "https://search.example.com"})
	require.ErrorContains(t, err, "index")
	_, err = New(Config{BaseURL: "not a url", Index: "articles"})
	require.Error(t, err)
}

func TestFlexFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantDate  string
		wantImage string
	}{
		{name: "string values", raw: `{"sortDate":"2024-01-02","thumbnail":"a.png"}`, wantDate: "2024-01-02", wantImage: "a.png"},
		{name: "unix seconds and url object", raw: `{"sortDate":0,"thumbnail":{"url":"b.png"}}`, wantDate: "1970-01-01T00:00:00Z", wantImage: "b.png"},
		{name: "nulls", raw: `{"sortDate":null,"thumbnail":null}`},
		{name: "unexpected shapes", raw: `{"sortDate":true,"thumbnail":{"alt":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var h hit
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &h))
			assert.Equal(t, tt.wantDate, string(h.SortDate))
			assert.Equal(t, tt.wantImage, string(h.Thumbnail))
		})
	}
}
