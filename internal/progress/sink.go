package progress

import (
	"context"

	"go.uber.org/zap"
)

// Sink consumes batches of progress events.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events.
type Emitter interface {
	Emit(ctx context.Context, evt Event)
}

// Fanout delivers every event synchronously to each sink. Invalid events and
// sink failures are logged and dropped; emitting never fails the caller.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout wires sinks behind a single Emitter.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: append([]Sink(nil), sinks...), logger: logger}
}

// Emit implements Emitter.
func (f *Fanout) Emit(ctx context.Context, evt Event) {
	if err := evt.Validate(); err != nil {
		f.logger.Warn("dropping invalid progress event", zap.String("stage", string(evt.Stage)), zap.Error(err))
		return
	}
	batch := []Event{evt}
	for _, sink := range f.sinks {
		if err := sink.Consume(ctx, batch); err != nil {
			f.logger.Warn("progress sink consume failed", zap.Error(err))
		}
	}
}

// Close closes every sink, logging failures.
func (f *Fanout) Close(ctx context.Context) {
	for _, sink := range f.sinks {
		if err := sink.Close(ctx); err != nil {
			f.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// Discard is an Emitter that drops everything.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(context.Context, Event) {}
