package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/observability"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	defaultInterval = 10 * time.Minute
)

// ErrStale is returned by Refresh when a newer refresh started before this
// one finished and its result was discarded.
var ErrStale = errors.New("refresh superseded by a newer refresh")

// Loader loads one dataset. source.Fallback implements it.
type Loader interface {
	Name() string
	Load(ctx context.Context) (source.Result, error)
}

// Publisher forwards a committed snapshot downstream.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Sources are the dataset loaders a Refresher reads. Visuals and
// RelatedProducts are optional.
type Sources struct {
	Incidents       Loader
	Facilities      Loader
	Visuals         Loader
	RelatedProducts Loader
}

// Refresher orchestrates the fetch-parse-aggregate-commit cycle.
type Refresher struct {
	sources   Sources
	reference Reference
	store     *Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	trigger   chan struct{}
	ready     atomic.Bool
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) Option { return func(r *Refresher) { r.clock = c } }

// WithInterval sets the time between scheduled refreshes.
func WithInterval(d time.Duration) Option { return func(r *Refresher) { r.interval = d } }

// WithPublisher sends each committed snapshot to p.
func WithPublisher(p Publisher) Option { return func(r *Refresher) { r.publisher = p } }

// New creates a Refresher that commits into store.
func New(store *Store, sources Sources, ref Reference, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	r := &Refresher{
		sources:   sources,
		reference: ref,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		interval:  defaultInterval,
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the snapshot store the Refresher commits into.
func (r *Refresher) Store() *Store { return r.store }

// CheckReadiness returns nil once a snapshot has been committed.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no dataset snapshot committed yet")
	}
	return nil
}

// Trigger requests a refresh from the Run loop without waiting for the next
// tick. Requests made while one is pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Refresh loads every dataset, builds a snapshot and commits it. It returns
// ErrStale if a newer refresh committed or is still running, and wraps source.ErrNoSource
// when a required dataset is unavailable.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := r.clock.Now()
	seq := r.store.Begin()
	defer r.store.Abort(seq)

	origins := make(map[string]source.Origin, 4)

	incidents, err := r.load(ctx, r.sources.Incidents, origins)
	if err != nil {
		return err
	}
	facilities, err := r.load(ctx, r.sources.Facilities, origins)
	if err != nil {
		return err
	}

	visuals, err := r.loadOptional(ctx, r.sources.Visuals, origins)
	if err != nil {
		return err
	}
	related, err := r.loadOptional(ctx, r.sources.RelatedProducts, origins)
	if err != nil {
		return err
	}

	snap, stats := Build(Inputs{
		Incidents:       incidents,
		Facilities:      facilities,
		Visuals:         visuals,
		RelatedProducts: related,
		Reference:       r.reference,
	})
	snap.BuiltAt = r.clock.Now()
	snap.Origins = origins
	r.recordStats(stats)

	if !r.store.Commit(seq, snap) {
		r.metrics.StaleDiscarded.Inc()
		r.logger.Warn("discarding stale refresh result", "seq", seq)
		return ErrStale
	}

	r.metrics.Incidents.Set(float64(len(snap.Incidents)))
	r.metrics.Facilities.Set(float64(len(snap.Locations)))
	r.metrics.UnmatchedFacilities.Set(float64(len(snap.Join.Unmatched)))
	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())
	r.ready.Store(true)

	r.logger.Info("snapshot committed",
		"seq", seq,
		"incidents", len(snap.Incidents),
		"facilities", len(snap.Locations),
		"systems", len(snap.Systems),
		"unmatched_shapes", len(snap.Join.Unmatched),
		"dropped_incident_rows", stats.IncidentDropped,
	)

	r.publish(ctx, snap)
	return nil
}

func (r *Refresher) load(ctx context.Context, l Loader, origins map[string]source.Origin) ([]byte, error) {
	res, err := l.Load(ctx)
	if err != nil {
		r.metrics.Fetches.WithLabelValues(l.Name(), "error").Inc()
		return nil, fmt.Errorf("load %s: %w", l.Name(), err)
	}
	r.metrics.Fetches.WithLabelValues(l.Name(), string(res.Origin)).Inc()
	origins[l.Name()] = res.Origin
	return res.Body, nil
}

// loadOptional loads a dataset the snapshot can do without. Only a cancelled
// context is reported as an error.
func (r *Refresher) loadOptional(ctx context.Context, l Loader, origins map[string]source.Origin) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	body, err := r.load(ctx, l, origins)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Debug("optional dataset unavailable", "dataset", l.Name(), "error", err)
		return nil, nil
	}
	return body, nil
}

func (r *Refresher) recordStats(st Stats) {
	name := func(l Loader) string {
		if l == nil {
			return ""
		}
		return l.Name()
	}
	r.metrics.RowsParsed.WithLabelValues(name(r.sources.Incidents)).Add(float64(st.IncidentRows))
	r.metrics.RowsDropped.WithLabelValues(name(r.sources.Incidents)).Add(float64(st.IncidentDropped))
	r.metrics.RowsParsed.WithLabelValues(name(r.sources.Facilities)).Add(float64(st.FacilityRows))
	r.metrics.RowsDropped.WithLabelValues(name(r.sources.Facilities)).Add(float64(st.FacilityDropped))
	if r.sources.Visuals != nil {
		r.metrics.RowsParsed.WithLabelValues(name(r.sources.Visuals)).Add(float64(st.VisualRows))
	}
	if r.sources.RelatedProducts != nil {
		r.metrics.RowsParsed.WithLabelValues(name(r.sources.RelatedProducts)).Add(float64(st.RelatedRows))
	}
}

func (r *Refresher) publish(ctx context.Context, snap *Snapshot) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, snap); err != nil {
		r.metrics.PublishErrors.Inc()
		r.logger.Warn("publish snapshot failed", "seq", snap.Seq, "error", err)
	}
}

// Run refreshes immediately, then on every tick or Trigger, until the
// context is cancelled. Failed refreshes are retried with exponential
// backoff.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresh loop started", "interval", r.interval)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		err := r.Refresh(ctx)
		if ctx.Err() != nil {
			r.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		}

		if err != nil && !errors.Is(err, ErrStale) {
			r.metrics.RefreshErrors.Inc()
			r.logger.Error("refresh failed", "error", err, "retry_in", backoff)
			if !sleepWithContext(ctx, r.clock, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		case <-r.trigger:
			r.logger.Debug("refresh triggered")
		}
	}
}

// Watch triggers a refresh whenever one of the watcher's files changes.
func (r *Refresher) Watch(ctx context.Context, w *source.Watcher) error {
	return w.Run(ctx, func(path string) {
		r.logger.Info("local dataset changed", "file", path)
		r.Trigger()
	})
}

// sleepWithContext is retry.SleepWithContext on the Refresher's clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
