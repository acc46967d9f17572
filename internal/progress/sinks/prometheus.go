package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/knowledge-sync/internal/progress"
)

// PrometheusSink exports sync progress via Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastRun       *prometheus.GaugeVec

	pagesFetched prometheus.Counter
	fetchErrors  prometheus.Counter
	items        *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgesync_runs_started_total",
			Help: "Total sync runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgesync_runs_completed_total",
			Help: "Total sync runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "knowledgesync_run_duration_seconds",
			Help:    "Wall time per completed sync run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "knowledgesync_last_run_timestamp_seconds",
			Help: "Unix time the last sync run finished, partitioned by result.",
		}, []string{"result"}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgesync_pages_fetched_total",
			Help: "Source pages fetched successfully.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgesync_fetch_errors_total",
			Help: "Source page fetches that failed.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgesync_items_total",
			Help: "Articles examined partitioned by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgesync_field_fallbacks_total",
			Help: "Normalized fields that received their fallback value.",
		}, []string{"field"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.lastRun,
		s.pagesFetched,
		s.fetchErrors,
		s.items,
		s.fallbacks,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.completeRun(evt, "success")
	case progress.StageRunError:
		s.completeRun(evt, "error")
	case progress.StagePageFetched:
		s.pagesFetched.Inc()
	case progress.StageFetchError:
		s.fetchErrors.Inc()
	case progress.StageItemCreated:
		s.items.WithLabelValues("created").Inc()
	case progress.StageItemSkipped:
		s.items.WithLabelValues("skipped").Inc()
	case progress.StageItemInvalid:
		s.items.WithLabelValues("invalid").Inc()
	case progress.StageItemFailed:
		s.items.WithLabelValues("failed").Inc()
	case progress.StageFieldFallback:
		s.fallbacks.WithLabelValues(evt.Field).Inc()
	}
}

func (s *PrometheusSink) completeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	s.lastRun.WithLabelValues(result).Set(float64(evt.TS.Unix()))
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
