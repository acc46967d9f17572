// Package postgres stores article records in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

const (
	defaultTable    = "articles"
	defaultPageSize = 100
	uniqueViolation = "23505"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrDuplicateKey is returned when the table already holds the object ID.
var ErrDuplicateKey = errors.New("object id already stored")

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// PageSize is the number of keys read per ListKeys call.
	PageSize int
	// Timeout bounds each statement; zero leaves the caller's deadline alone.
	Timeout time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store implements ingest.Destination on Postgres.
type Store struct {
	pool     queryExecCloser
	table    string
	pageSize int
	timeout  time.Duration
}

// NewStore connects to Postgres using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("destination.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewStoreWithPool(pool, cfg.Table, cfg.PageSize)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.timeout = cfg.Timeout
	return store, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool queryExecCloser, table string, pageSize int) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{pool: pool, table: table, pageSize: pageSize}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the articles table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	object_id    text PRIMARY KEY,
	title        text NOT NULL DEFAULT '',
	published_on date,
	author       text NOT NULL DEFAULT '',
	faculty      text NOT NULL DEFAULT '',
	summary      text NOT NULL DEFAULT '',
	url          text NOT NULL DEFAULT '',
	image        text NOT NULL DEFAULT '',
	categories   text[] NOT NULL DEFAULT '{}',
	new_category text NOT NULL DEFAULT '',
	ingested_at  timestamptz NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// ListKeys returns object IDs in key order. The token is the last key of the
// previous page.
func (s *Store) ListKeys(ctx context.Context, token string) (ingest.KeyPage, error) {
	query := fmt.Sprintf(
		`SELECT object_id FROM %s WHERE object_id > $1 ORDER BY object_id LIMIT $2`,
		s.table,
	)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, query, token, s.pageSize)
	if err != nil {
		return ingest.KeyPage{}, ingest.TransportError("list object ids", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return ingest.KeyPage{}, ingest.TransportError("scan object ids", err)
	}
	page := ingest.KeyPage{Keys: keys}
	if len(keys) == s.pageSize {
		page.Next = keys[len(keys)-1]
	}
	return page, nil
}

// CreateRecord inserts one article row and returns its object ID.
func (s *Store) CreateRecord(ctx context.Context, record ingest.Record) (string, error) {
	if record.ObjectID == "" {
		return "", errors.New("object id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	object_id,
	title,
	published_on,
	author,
	faculty,
	summary,
	url,
	image,
	categories,
	new_category,
	ingested_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)

	args := []any{
		record.ObjectID,
		record.Title,
		publishedOn(record.Date),
		record.Author,
		record.Faculty,
		record.Summary,
		record.URL,
		record.Image,
		categories(record.Categories),
		record.NewCategory,
		ingestedAt(record.IngestedAt),
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("insert article %q: %w", record.ObjectID, ErrDuplicateKey)
		}
		return "", ingest.TransportError(fmt.Sprintf("insert article %q", record.ObjectID), err)
	}
	return record.ObjectID, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func publishedOn(date string) *time.Time {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil
	}
	return &t
}

func ingestedAt(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

func categories(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
