// Package headless fetches listing pages through headless Chrome, for
// listings that only render their teasers client-side.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
	"github.com/JakeFAU/knowledge-sync/internal/source/listing"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultSelectorTimeout   = 10 * time.Second
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	URL       string
	UserAgent string
	// WaitSelector is awaited after navigation. A page that never renders it
	// is parsed as-is, which yields no entries on an exhausted listing.
	WaitSelector      string
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
}

// page is a rendered document.
type page struct {
	html   string
	status int
}

// Fetcher implements ingest.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	render      func(ctx context.Context, url string) (page, error)
	cursor      *listing.Cursor
}

// NewChromedp creates a headless fetcher. Chrome is started lazily on the
// first fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("listing url is required")
	}
	if _, err := listing.PageURL(cfg.URL, 1); err != nil {
		return nil, err
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = listing.ItemSelector
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = defaultSelectorTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	f := &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
	f.render = f.runHeadless
	f.cursor = listing.NewCursor(f.loadPage)
	return f, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// FetchPage returns the teasers in [offset, offset+size), rendering as many
// listing pages as that window spans.
func (f *Fetcher) FetchPage(ctx context.Context, offset, size int) ([]ingest.RawEntry, error) {
	return f.cursor.Window(ctx, offset, size)
}

func (f *Fetcher) loadPage(ctx context.Context, n int) ([]ingest.RawEntry, error) {
	pageURL, err := listing.PageURL(f.cfg.URL, n)
	if err != nil {
		return nil, err
	}
	rendered, err := f.render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if rendered.status >= http.StatusBadRequest {
		return nil, ingest.NewStatusError("render listing", rendered.status, nil)
	}
	return listing.Parse([]byte(rendered.html))
}

func (f *Fetcher) runHeadless(ctx context.Context, url string) (page, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	meta := &documentStatus{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var html string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		f.waitForSelector(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return page{}, fmt.Errorf("headless fetch canceled: %w", ctx.Err())
		}
		return page{}, ingest.TransportError("render listing", err)
	}
	return page{html: html, status: meta.get()}, nil
}

func (f *Fetcher) waitForSelector() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, f.cfg.SelectorTimeout)
		defer cancel()
		err := chromedp.WaitReady(f.cfg.WaitSelector, chromedp.ByQuery).Do(waitCtx)
		if err != nil && waitCtx.Err() != nil && ctx.Err() == nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wait for %q: %w", f.cfg.WaitSelector, err)
		}
		return nil
	})
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// documentStatus records the HTTP status of the top-level document.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (d *documentStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == 0 {
		return http.StatusOK
	}
	return d.status
}
