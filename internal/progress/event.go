package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes which milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StagePageFetched   Stage = "PAGE_FETCHED"
	StageFetchError    Stage = "FETCH_ERROR"
	StageItemCreated   Stage = "ITEM_CREATED"
	StageItemSkipped   Stage = "ITEM_SKIPPED"
	StageItemInvalid   Stage = "ITEM_INVALID"
	StageItemFailed    Stage = "ITEM_FAILED"
	StageFieldFallback Stage = "FIELD_FALLBACK"
)

// Event captures a single step of a sync run.
type Event struct {
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// ObjectID and Title identify the article for item stages.
	ObjectID string
	Title    string
	// Offset and Count describe the page for page stages.
	Offset int
	Count  int
	// Field names the record field for StageFieldFallback.
	Field string
	// Dur is the run or call latency, when measured.
	Dur time.Duration
	// Note carries low-volume context such as error text or a fallback reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StagePageFetched, StageFetchError,
		StageItemCreated, StageItemSkipped, StageItemInvalid, StageItemFailed:
	case StageFieldFallback:
		if e.Field == "" {
			return errors.New("field fallback requires field")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
