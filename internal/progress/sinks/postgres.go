package sinks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/knowledge-sync/internal/progress"
)

const defaultHistoryTable = "sync_runs"

// Run statuses written to the history table.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

var validHistoryTable = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunHistorySink records one row per sync run in Postgres: a row is inserted
// on RUN_START and completed with the outcome counters on RUN_DONE or RUN_ERROR.
type RunHistorySink struct {
	pool  execCloser
	table string

	mu   sync.Mutex
	runs map[string]*runTally
}

type runTally struct {
	pages     int
	created   int
	skipped   int
	invalid   int
	failed    int
	fallbacks int
}

// NewRunHistorySink connects to Postgres.
func NewRunHistorySink(ctx context.Context, dsn, table string) (*RunHistorySink, error) {
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect run history: %w", err)
	}
	sink, err := NewRunHistorySinkWithPool(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// NewRunHistorySinkWithPool builds a sink on an existing pool (primarily for testing).
func NewRunHistorySinkWithPool(pool execCloser, table string) (*RunHistorySink, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultHistoryTable
	}
	if !validHistoryTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunHistorySink{pool: pool, table: table, runs: make(map[string]*runTally)}, nil
}

// EnsureSchema creates the history table when it does not exist.
func (s *RunHistorySink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id      text PRIMARY KEY,
			started_at  timestamptz NOT NULL,
			finished_at timestamptz,
			status      text NOT NULL,
			note        text,
			pages       integer NOT NULL DEFAULT 0,
			created     integer NOT NULL DEFAULT 0,
			skipped     integer NOT NULL DEFAULT 0,
			invalid     integer NOT NULL DEFAULT 0,
			failed      integer NOT NULL DEFAULT 0,
			fallbacks   integer NOT NULL DEFAULT 0
		)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure run history schema: %w", err)
	}
	return nil
}

// Consume tallies item events in memory and writes run boundaries.
func (s *RunHistorySink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		if err := s.consumeEvent(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *RunHistorySink) consumeEvent(ctx context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		s.mu.Lock()
		s.runs[evt.RunID] = &runTally{}
		s.mu.Unlock()
		return s.startRun(ctx, evt)
	case progress.StageRunDone:
		return s.completeRun(ctx, evt, RunSucceeded)
	case progress.StageRunError:
		return s.completeRun(ctx, evt, RunFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tally, ok := s.runs[evt.RunID]
	if !ok {
		return nil
	}
	switch evt.Stage {
	case progress.StagePageFetched:
		tally.pages++
	case progress.StageItemCreated:
		tally.created++
	case progress.StageItemSkipped:
		tally.skipped++
	case progress.StageItemInvalid:
		tally.invalid++
	case progress.StageItemFailed:
		tally.failed++
	case progress.StageFieldFallback:
		tally.fallbacks++
	}
	return nil
}

func (s *RunHistorySink) startRun(ctx context.Context, evt progress.Event) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, evt.RunID, evt.TS, RunRunning); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

func (s *RunHistorySink) completeRun(ctx context.Context, evt progress.Event, status string) error {
	s.mu.Lock()
	tally, ok := s.runs[evt.RunID]
	delete(s.runs, evt.RunID)
	s.mu.Unlock()
	if !ok {
		tally = &runTally{}
	}

	// A canceled run still gets its outcome recorded.
	ctx = context.WithoutCancel(ctx)
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, note = $3,
			pages = $4, created = $5, skipped = $6, invalid = $7, failed = $8, fallbacks = $9
		WHERE run_id = $10`, s.table)
	_, err := s.pool.Exec(ctx, query,
		evt.TS, status, evt.Note,
		tally.pages, tally.created, tally.skipped, tally.invalid, tally.failed, tally.fallbacks,
		evt.RunID,
	)
	if err != nil {
		return fmt.Errorf("record run completion: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *RunHistorySink) Close(context.Context) error {
	s.pool.Close()
	return nil
}
