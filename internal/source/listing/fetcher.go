// Package listing fetches article pages from the server-rendered listing
// using colly and extracts teasers with goquery.
package listing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	URL           string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements ingest.Fetcher over the HTML listing.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	cursor        *Cursor
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("listing url is required")
	}
	if _, err := PageURL(cfg.URL, 1); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	f := &Fetcher{cfg: cfg, baseCollector: c}
	f.cursor = NewCursor(f.loadPage)
	return f, nil
}

// FetchPage returns the teasers in [offset, offset+size), downloading as many
// listing pages as that window spans.
func (f *Fetcher) FetchPage(ctx context.Context, offset, size int) ([]ingest.RawEntry, error) {
	return f.cursor.Window(ctx, offset, size)
}

func (f *Fetcher) loadPage(ctx context.Context, page int) ([]ingest.RawEntry, error) {
	pageURL, err := PageURL(f.cfg.URL, page)
	if err != nil {
		return nil, err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(&body, &fetchErr)
	if err := f.runCollector(ctx, collector, pageURL, &fetchErr); err != nil {
		return nil, err
	}

	return Parse(body)
}

func (f *Fetcher) buildCollector(body *[]byte, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	// Clones share the visited store; every run revisits the same pages.
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	configureCollectorHooks(collector, body, fetchErr)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = ingest.NewStatusError("fetch listing", r.StatusCode, r.Body)
			return
		}
		*fetchErr = ingest.TransportError("fetch listing", err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("listing fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return ingest.TransportError("visit listing", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
