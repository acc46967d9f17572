// Package airtable reads and inserts article rows in an Airtable table over
// the REST API.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const (
	// DefaultBaseURL is the public Airtable API endpoint.
	DefaultBaseURL = "https://api.airtable.com"
	defaultTimeout = 30 * time.Second
	listPageSize   = 100
	fieldIDPrefix  = "fld"
)

// Fields maps record fields onto Airtable field IDs or names.
type Fields struct {
	ObjectID    string `mapstructure:"object_id"`
	Title       string `mapstructure:"title"`
	Date        string `mapstructure:"date"`
	Author      string `mapstructure:"author"`
	Faculty     string `mapstructure:"faculty"`
	Summary     string `mapstructure:"summary"`
	URL         string `mapstructure:"url"`
	Image       string `mapstructure:"image"`
	Categories  string `mapstructure:"category"`
	NewCategory string `mapstructure:"new_category"`
	IngestedAt  string `mapstructure:"ingested_at"`
}

// DefaultFields returns the field mapping of the production table.
func DefaultFields() Fields {
	return Fields{
		ObjectID:    "object_id",
		Title:       "fldL68m7PxHr8Yu07",
		Date:        "fldI5VF5zXon5VFso",
		Author:      "fldY18cLWUknYKnFF",
		Faculty:     "faculty",
		Summary:     "fld7l8QViOEKRmqKt",
		URL:         "flduwlWuezNKWsEDb",
		Image:       "fldv4pJxM5npkieFJ",
		Categories:  "fldlf7UamHsrgCEKb",
		NewCategory: "new_category",
		IngestedAt:  "ingested_at",
	}
}

// Config controls the Airtable client.
type Config struct {
	BaseURL  string
	APIKey   string
	BaseID   string
	TableID  string
	Typecast bool
	Fields   Fields
	Timeout  time.Duration
}

// Client implements ingest.Destination against one Airtable table.
type Client struct {
	client *resty.Client
	path   string
	cfg    Config
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse airtable base url: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("airtable api key is required")
	}
	if cfg.BaseID == "" || cfg.TableID == "" {
		return nil, errors.New("airtable base id and table id are required")
	}
	if cfg.Fields == (Fields{}) {
		cfg.Fields = DefaultFields()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{
		client: client,
		path:   "/v0/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.TableID),
		cfg:    cfg,
	}, nil
}

type listResponse struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
	Offset string `json:"offset"`
}

// ListKeys returns one page of stored object IDs. Only the object ID field is
// requested; rows without one are ignored.
func (c *Client) ListKeys(ctx context.Context, token string) (ingest.KeyPage, error) {
	if c.cfg.Fields.ObjectID == "" {
		return ingest.KeyPage{}, errors.New("airtable object id field is not mapped")
	}
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("fields[]", c.cfg.Fields.ObjectID).
		SetQueryParam("pageSize", strconv.Itoa(listPageSize))
	if strings.HasPrefix(c.cfg.Fields.ObjectID, fieldIDPrefix) {
		req.SetQueryParam("returnFieldsByFieldId", "true")
	}
	if token != "" {
		req.SetQueryParam("offset", token)
	}

	res, err := req.Get(c.path)
	if err != nil {
		return ingest.KeyPage{}, ingest.TransportError("list records", err)
	}
	if res.IsError() {
		return ingest.KeyPage{}, ingest.NewStatusError("list records", res.StatusCode(), res.Body())
	}

	var decoded listResponse
	if err := json.Unmarshal(res.Body(), &decoded); err != nil {
		return ingest.KeyPage{}, fmt.Errorf("decode list response: %w", err)
	}
	page := ingest.KeyPage{Next: decoded.Offset}
	for _, rec := range decoded.Records {
		if key, ok := rec.Fields[c.cfg.Fields.ObjectID].(string); ok && key != "" {
			page.Keys = append(page.Keys, key)
		}
	}
	return page, nil
}

type createRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast"`
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateRecord inserts one row and returns the Airtable record ID.
func (c *Client) CreateRecord(ctx context.Context, record ingest.Record) (string, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createRequest{Fields: c.fieldsOf(record), Typecast: c.cfg.Typecast}).
		Post(c.path)
	if err != nil {
		return "", ingest.TransportError("create record", err)
	}
	if res.IsError() {
		return "", ingest.NewStatusError("create record", res.StatusCode(), res.Body())
	}

	var decoded createResponse
	if err := json.Unmarshal(res.Body(), &decoded); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return decoded.ID, nil
}

// fieldsOf maps record onto the configured fields. Fields mapped to "" are
// not sent. Date, object ID and new category are omitted when empty.
func (c *Client) fieldsOf(record ingest.Record) map[string]any {
	f := c.cfg.Fields
	out := make(map[string]any, 11)
	set := func(field string, value any) {
		if field != "" {
			out[field] = value
		}
	}
	setNonEmpty := func(field, value string) {
		if value != "" {
			set(field, value)
		}
	}

	setNonEmpty(f.ObjectID, record.ObjectID)
	set(f.Title, record.Title)
	setNonEmpty(f.Date, record.Date)
	set(f.Author, record.Author)
	set(f.Faculty, record.Faculty)
	set(f.Summary, record.Summary)
	set(f.URL, record.URL)
	set(f.Image, record.Image)
	categories := record.Categories
	if categories == nil {
		categories = []string{}
	}
	set(f.Categories, categories)
	setNonEmpty(f.NewCategory, record.NewCategory)
	set(f.IngestedAt, record.IngestedAt)
	return out
}
