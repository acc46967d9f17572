// Package coordinator drives a sync run: it pages through the source, skips
// articles the destination already holds, normalizes the rest and inserts
// them one at a time. A failure on one article never aborts the run.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/index"
	"github.com/JakeFAU/knowledge-sync/internal/ingest"
	"github.com/JakeFAU/knowledge-sync/internal/normalizer"
	"github.com/JakeFAU/knowledge-sync/internal/progress"
)

var (
	// ErrIndexLoad is returned when the existing-key index cannot be built.
	ErrIndexLoad = errors.New("existing-key index load failed")
	// ErrInitialFetch is returned when the very first page cannot be fetched.
	ErrInitialFetch = errors.New("initial page fetch failed")
)

// StopReason explains why a run stopped paginating.
type StopReason string

// Stop reasons reported in Summary.
const (
	StopExhausted  StopReason = "exhausted"
	StopMaxItems   StopReason = "max_items"
	StopFetchError StopReason = "fetch_error"
	StopCanceled   StopReason = "canceled"
	StopAborted    StopReason = "aborted"
)

// KeyLoader builds the existing-key index.
type KeyLoader interface {
	Load(ctx context.Context) (*index.KeySet, error)
}

// Normalizer maps raw entries to destination records.
type Normalizer interface {
	Normalize(entry ingest.RawEntry) normalizer.Result
}

// Config controls Coordinator behavior.
type Config struct {
	// DedupEnabled loads the existing-key index and requires identifiers.
	// When false every entry is created and missing identifiers are accepted.
	DedupEnabled bool
}

// Summary reports what a run did.
type Summary struct {
	RunID      string     `json:"run_id"`
	Examined   int        `json:"examined"`
	Created    int        `json:"created"`
	Skipped    int        `json:"skipped"`
	Invalid    int        `json:"invalid"`
	Failed     int        `json:"failed"`
	Pages      int        `json:"pages"`
	StopReason StopReason `json:"stop_reason"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Coordinator executes sync runs. A Coordinator runs one sync at a time; it
// holds no state between runs.
type Coordinator struct {
	fetcher    ingest.Fetcher
	loader     KeyLoader
	normalizer Normalizer
	creator    ingest.RecordCreator
	emitter    progress.Emitter
	clock      ingest.Clock
	ids        ingest.IDGenerator
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Coordinator. loader may be nil when dedup is disabled.
func New(
	fetcher ingest.Fetcher,
	loader KeyLoader,
	norm Normalizer,
	creator ingest.RecordCreator,
	emitter progress.Emitter,
	clock ingest.Clock,
	ids ingest.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		fetcher:    fetcher,
		loader:     loader,
		normalizer: norm,
		creator:    creator,
		emitter:    emitter,
		clock:      clock,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
	}
}

type run struct {
	id      string
	summary Summary
	seen    *index.KeySet
	logger  *zap.Logger
}

// Run pages through the source with the given page size until the source is
// exhausted, maxItems entries have been examined (maxItems <= 0 means no cap),
// a page fetch fails, or ctx is canceled. Only an index load failure or a
// failure fetching the first page is returned as an error.
func (c *Coordinator) Run(ctx context.Context, pageSize, maxItems int) (Summary, error) {
	if pageSize <= 0 {
		return Summary{}, fmt.Errorf("page size must be > 0, got %d", pageSize)
	}
	runID, err := c.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	r := &run{
		id:      runID,
		summary: Summary{RunID: runID, StartedAt: c.clock.Now()},
		logger:  c.logger.With(zap.String("run_id", runID)),
	}
	r.logger.Info("sync run started",
		zap.Int("page_size", pageSize),
		zap.Int("max_items", maxItems),
		zap.Bool("dedup", c.cfg.DedupEnabled),
	)
	c.emit(ctx, r, progress.Event{Stage: progress.StageRunStart})

	if c.cfg.DedupEnabled {
		if c.loader == nil {
			return c.abort(ctx, r, fmt.Errorf("%w: no key loader configured", ErrIndexLoad))
		}
		keys, err := c.loader.Load(ctx)
		if err != nil {
			return c.abort(ctx, r, fmt.Errorf("%w: %w", ErrIndexLoad, err))
		}
		r.seen = keys.Clone()
	}

	if err := c.paginate(ctx, r, pageSize, maxItems); err != nil {
		return c.abort(ctx, r, err)
	}
	return c.finish(ctx, r), nil
}

func (c *Coordinator) paginate(ctx context.Context, r *run, pageSize, maxItems int) error {
	fetched := false
	for offset := 0; ; offset += pageSize {
		if reached(r.summary.Examined, maxItems) {
			r.summary.StopReason = StopMaxItems
			return nil
		}
		if ctx.Err() != nil {
			r.summary.StopReason = StopCanceled
			return nil
		}

		entries, err := c.fetcher.FetchPage(ctx, offset, pageSize)
		if err != nil {
			c.emit(ctx, r, progress.Event{Stage: progress.StageFetchError, Offset: offset, Note: err.Error()})
			switch {
			case ctx.Err() != nil:
				r.summary.StopReason = StopCanceled
				return nil
			case !fetched:
				return fmt.Errorf("%w: offset %d: %w", ErrInitialFetch, offset, err)
			}
			r.logger.Error("page fetch failed; stopping run", zap.Int("offset", offset), zap.Error(err))
			r.summary.StopReason = StopFetchError
			return nil
		}
		fetched = true
		if len(entries) == 0 {
			r.logger.Info("source exhausted", zap.Int("offset", offset))
			r.summary.StopReason = StopExhausted
			return nil
		}
		r.summary.Pages++
		c.emit(ctx, r, progress.Event{Stage: progress.StagePageFetched, Offset: offset, Count: len(entries)})
		r.logger.Debug("page fetched", zap.Int("offset", offset), zap.Int("entries", len(entries)))

		for _, entry := range entries {
			if reached(r.summary.Examined, maxItems) {
				r.summary.StopReason = StopMaxItems
				return nil
			}
			if ctx.Err() != nil {
				r.summary.StopReason = StopCanceled
				return nil
			}
			r.summary.Examined++
			c.processEntry(ctx, r, entry)
		}
	}
}

func (c *Coordinator) processEntry(ctx context.Context, r *run, entry ingest.RawEntry) {
	itemLogger := r.logger.With(zap.String("object_id", entry.ID), zap.String("title", entry.Title))
	created := false
	defer func() {
		if rec := recover(); rec != nil {
			if created {
				// The record exists; only its reporting failed.
				itemLogger.Error("panic after article was uploaded", zap.Any("panic", rec))
				return
			}
			r.summary.Failed++
			itemLogger.Error("panic processing article", zap.Any("panic", rec))
			c.emitItem(ctx, r, progress.StageItemFailed, entry, fmt.Sprint(rec))
		}
	}()

	if c.cfg.DedupEnabled {
		if entry.ID == "" {
			r.summary.Invalid++
			itemLogger.Warn("article has no identifier; skipping")
			c.emitItem(ctx, r, progress.StageItemInvalid, entry, "missing identifier")
			return
		}
		if r.seen.Contains(entry.ID) {
			r.summary.Skipped++
			itemLogger.Info("article already stored; skipping")
			c.emitItem(ctx, r, progress.StageItemSkipped, entry, "")
			return
		}
	}

	result := c.normalizer.Normalize(entry)
	for _, fb := range result.Fallbacks {
		itemLogger.Warn("field fallback applied",
			zap.String("field", fb.Field),
			zap.String("reason", fb.Reason),
			zap.String("raw", fb.Raw),
		)
		c.emit(ctx, r, progress.Event{
			Stage:    progress.StageFieldFallback,
			ObjectID: entry.ID,
			Title:    entry.Title,
			Field:    fb.Field,
			Note:     fb.Reason,
		})
	}

	rowID, err := c.creator.CreateRecord(ctx, result.Record)
	if err != nil {
		r.summary.Failed++
		itemLogger.Error("create record failed", zap.Error(err))
		c.emitItem(ctx, r, progress.StageItemFailed, entry, err.Error())
		return
	}
	r.summary.Created++
	created = true
	if r.seen != nil {
		r.seen.Add(entry.ID)
	}
	itemLogger.Info("article uploaded", zap.String("row_id", rowID))
	c.emitItem(ctx, r, progress.StageItemCreated, entry, "")
}

func (c *Coordinator) finish(ctx context.Context, r *run) Summary {
	r.summary.FinishedAt = c.clock.Now()
	c.emit(ctx, r, progress.Event{
		Stage: progress.StageRunDone,
		Dur:   nonNegative(r.summary.FinishedAt.Sub(r.summary.StartedAt)),
		Note:  string(r.summary.StopReason),
	})
	r.logger.Info("sync run finished",
		zap.Int("examined", r.summary.Examined),
		zap.Int("created", r.summary.Created),
		zap.Int("skipped", r.summary.Skipped),
		zap.Int("invalid", r.summary.Invalid),
		zap.Int("failed", r.summary.Failed),
		zap.Int("pages", r.summary.Pages),
		zap.String("stop_reason", string(r.summary.StopReason)),
	)
	return r.summary
}

func (c *Coordinator) abort(ctx context.Context, r *run, err error) (Summary, error) {
	r.summary.StopReason = StopAborted
	r.summary.FinishedAt = c.clock.Now()
	c.emit(ctx, r, progress.Event{
		Stage: progress.StageRunError,
		Dur:   nonNegative(r.summary.FinishedAt.Sub(r.summary.StartedAt)),
		Note:  err.Error(),
	})
	r.logger.Error("sync run aborted", zap.Int("examined", r.summary.Examined), zap.Error(err))
	return r.summary, err
}

func (c *Coordinator) emitItem(ctx context.Context, r *run, stage progress.Stage, entry ingest.RawEntry, note string) {
	c.emit(ctx, r, progress.Event{Stage: stage, ObjectID: entry.ID, Title: entry.Title, Note: note})
}

func (c *Coordinator) emit(ctx context.Context, r *run, evt progress.Event) {
	evt.RunID = r.id
	evt.TS = c.clock.Now()
	c.emitter.Emit(ctx, evt)
}

func reached(examined, maxItems int) bool {
	return maxItems > 0 && examined >= maxItems
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
