package listing

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// Selectors for the listing markup.
const (
	ItemSelector     = ".hbs-tease-feed__item"
	titleSelector    = "h2 a"
	imageSelector    = "figure img"
	teaserSelector   = ".hbs-article-tease__teaser"
	authorSelector   = ".hbs-byline__author span"
	timeSelector     = "time"
	overlineSelector = ".hbs-article-tease__overline a"
)

// Parse extracts the article teasers of one listing page in document order.
func Parse(body []byte) ([]ingest.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var entries []ingest.RawEntry
	doc.Find(ItemSelector).Each(func(_ int, item *goquery.Selection) {
		entries = append(entries, parseItem(item))
	})
	return entries, nil
}

func parseItem(item *goquery.Selection) ingest.RawEntry {
	link := item.Find(titleSelector).First()
	href := strings.TrimSpace(link.AttrOr("href", ""))

	entry := ingest.RawEntry{
		ID:        strings.TrimSpace(item.AttrOr("data-id", "")),
		Title:     text(link),
		URL:       href,
		Thumbnail: strings.TrimSpace(item.Find(imageSelector).First().AttrOr("src", "")),
		Summary:   text(item.Find(teaserSelector).First()),
	}
	if entry.ID == "" {
		entry.ID = pathOf(href)
	}

	item.Find(authorSelector).Each(func(_ int, s *goquery.Selection) {
		if name := text(s); name != "" {
			entry.Authors = append(entry.Authors, name)
		}
	})

	if ts := item.Find(timeSelector).First(); ts.Length() > 0 {
		entry.SortDate = strings.TrimSpace(ts.AttrOr("datetime", ""))
		entry.Date = text(ts)
	}

	item.Find(overlineSelector).Each(func(_ int, s *goquery.Selection) {
		entry.Topics = append(entry.Topics, text(s))
	})
	return entry
}

// PageURL returns the URL of the listing's own page number page, counted from 1.
func PageURL(listingURL string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func pathOf(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}
