package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/observability"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const incidentCSV = "Incident ID,Category,Coordinates,Date of Post (ET),Source Name\n" +
	"101,Fire,\"35.70, 51.40\",6/13/2025,Channel A\n" +
	"101,Explosion,\"35.70, 51.40\",6/12/2025,Channel B\n" +
	"102,Visible Smoke,\"32.65, 51.67\",6/14/2025,Channel C\n" +
	"103,Fire,not-a-coordinate,6/14/2025,Channel D\n" +
	",Fire,\"30.0, 50.0\",6/14/2025,Channel E\n"

const facilityCSV = "Item_Id,Main-Category,Sub-Category,,Sub_Item,Locations,Sub_Item_Status\n" +
	"1.1,Enrichment,Centrifuge Enrichment Plants,,FEP,Natanz,Destroyed\n" +
	"1.3,Enrichment,Centrifuge Enrichment Plants,,Fordow,Fordow,Likely destroyed\n" +
	"4.1,Reactors,Heavy Water Reactor,,IR-40,Arak,Operational\n" +
	",Misc,,,orphan,,\n"

// --- mocks ---

type stubLoader struct {
	name     string
	body     string
	failures atomic.Int32
	calls    atomic.Int32
	gate     chan struct{}
}

func (s *stubLoader) Name() string { return s.name }

func (s *stubLoader) Load(ctx context.Context) (source.Result, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return source.Result{}, ctx.Err()
		}
	}
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return source.Result{}, source.ErrNoSource
	}
	return source.Result{Body: []byte(s.body), Origin: source.OriginRemote}, nil
}

type recordingPublisher struct {
	published atomic.Int32
	err       error
}

func (p *recordingPublisher) Publish(context.Context, *pipeline.Snapshot) error {
	p.published.Add(1)
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSources() (pipeline.Sources, *stubLoader, *stubLoader) {
	inc := &stubLoader{name: "incidents", body: incidentCSV}
	fac := &stubLoader{name: "facilities", body: facilityCSV}
	return pipeline.Sources{Incidents: inc, Facilities: fac}, inc, fac
}

func testReference() pipeline.Reference {
	return pipeline.Reference{
		Shapes:    []domain.Shape{{ID: "natanz-fep", Element: "path", Fill: "#c0392b"}},
		Overrides: domain.DefaultShapeOverrides(),
		Impacts:   domain.DefaultImpactConfigs(),
	}
}

// --- tests ---

func TestBuild(t *testing.T) {
	snap, stats := pipeline.Build(pipeline.Inputs{
		Incidents:       []byte(incidentCSV),
		Facilities:      []byte(facilityCSV),
		Visuals:         []byte("Title,Link\nStrike footage,https://example.org/1\n"),
		RelatedProducts: []byte("Product,URL\nStrike map,https://example.org/map\n"),
		Reference:       testReference(),
	})

	require.Len(t, snap.Incidents, 2)
	assert.Equal(t, "101", snap.Incidents[0].ID)
	assert.Equal(t, "Explosion", snap.Incidents[0].PrimaryCategory)
	assert.Equal(t, 2, snap.Incidents[0].EvidenceCount)
	assert.Equal(t, 5, stats.IncidentRows)
	assert.Equal(t, 2, stats.IncidentDropped)

	assert.Len(t, snap.Facilities, 3)
	assert.Equal(t, 4, stats.FacilityRows)
	assert.Equal(t, 1, stats.FacilityDropped)
	assert.Len(t, snap.Systems, 2)
	assert.Len(t, snap.Locations, 3)
	assert.NotEmpty(t, snap.Impacts)

	require.Len(t, snap.Join.Matches, 1)
	assert.Equal(t, "1.1", snap.Join.Matches[0].Facility.ItemID)
	assert.Len(t, snap.Join.Unmatched, 2)

	require.Len(t, snap.Visuals, 1)
	assert.Equal(t, "Strike footage", snap.Visuals[0].Get("Title"))
	require.Len(t, snap.RelatedProducts, 1)
	assert.Equal(t, "https://example.org/map", snap.RelatedProducts[0].Get("URL"))
	assert.Equal(t, 1, stats.RelatedRows)
	assert.Equal(t, incidentCSV, string(snap.IncidentsCSV))
}

func TestBuild_EmptyInputs(t *testing.T) {
	snap, stats := pipeline.Build(pipeline.Inputs{})

	assert.Empty(t, snap.Incidents)
	assert.Empty(t, snap.Systems)
	assert.Zero(t, stats.FacilityRows)
	assert.Nil(t, snap.Visuals)
	assert.Nil(t, snap.RelatedProducts)
}

func TestStore_LatestSequenceWins(t *testing.T) {
	store := pipeline.NewStore()
	assert.Nil(t, store.Current())

	first := store.Begin()
	second := store.Begin()

	assert.True(t, store.Commit(second, &pipeline.Snapshot{}))
	assert.False(t, store.Commit(first, &pipeline.Snapshot{}), "older refresh must not overwrite newer")
	assert.Equal(t, second, store.Current().Seq)
}

func TestStore_AbortedNewerRefreshDoesNotBlockOlder(t *testing.T) {
	store := pipeline.NewStore()

	older := store.Begin()
	newer := store.Begin()
	store.Abort(newer)

	assert.True(t, store.Commit(older, &pipeline.Snapshot{}))
	assert.Equal(t, older, store.Current().Seq)
	assert.False(t, store.Commit(newer, &pipeline.Snapshot{}), "aborted sequence cannot commit below current")
}

func TestStore_OlderResultLosesToInFlightNewer(t *testing.T) {
	store := pipeline.NewStore()

	older := store.Begin()
	newer := store.Begin()

	assert.False(t, store.Commit(older, &pipeline.Snapshot{}))
	assert.Nil(t, store.Current())
	assert.True(t, store.Commit(newer, &pipeline.Snapshot{}))
}

func TestRefresher_Refresh(t *testing.T) {
	sources, _, _ := newSources()
	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{}
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics, pipeline.WithPublisher(pub))

	require.Error(t, r.CheckReadiness(context.Background()))
	require.NoError(t, r.Refresh(context.Background()))

	snap := r.Store().Current()
	require.NotNil(t, snap)
	assert.Len(t, snap.Incidents, 2)
	assert.Equal(t, source.OriginRemote, snap.Origins["incidents"])
	assert.False(t, snap.BuiltAt.IsZero())
	require.NoError(t, r.CheckReadiness(context.Background()))

	assert.Equal(t, int32(1), pub.published.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Incidents), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.Facilities), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("incidents")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("facilities", "remote")), 0)
}

func TestRefresher_PublishErrorDoesNotFailRefresh(t *testing.T) {
	sources, _, _ := newSources()
	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics, pipeline.WithPublisher(pub))

	require.NoError(t, r.Refresh(context.Background()))
	assert.NotNil(t, r.Store().Current())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestRefresher_MissingRequiredSource(t *testing.T) {
	sources, inc, _ := newSources()
	inc.failures.Store(1)
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics)

	err := r.Refresh(context.Background())

	require.ErrorIs(t, err, source.ErrNoSource)
	assert.Nil(t, r.Store().Current())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("incidents", "error")), 0)
}

func TestRefresher_OptionalVisualsFailureIsTolerated(t *testing.T) {
	sources, _, _ := newSources()
	vis := &stubLoader{name: "visuals"}
	vis.failures.Store(1)
	sources.Visuals = vis
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, r.Refresh(context.Background()))
	assert.Empty(t, r.Store().Current().Visuals)
}

func TestRefresher_RelatedProducts(t *testing.T) {
	sources, _, _ := newSources()
	sources.RelatedProducts = &stubLoader{name: "related-products", body: "Product,URL\nStrike map,https://example.org/map\n"}
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics)

	require.NoError(t, r.Refresh(context.Background()))

	snap := r.Store().Current()
	require.Len(t, snap.RelatedProducts, 1)
	assert.Equal(t, "Strike map", snap.RelatedProducts[0].Get("Product"))
	assert.Equal(t, source.OriginRemote, snap.Origins["related-products"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsParsed.WithLabelValues("related-products")), 0)
}

func TestRefresher_OptionalRelatedProductsFailureIsTolerated(t *testing.T) {
	sources, _, _ := newSources()
	rel := &stubLoader{name: "related-products"}
	rel.failures.Store(1)
	sources.RelatedProducts = rel
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics)

	require.NoError(t, r.Refresh(context.Background()))
	assert.Empty(t, r.Store().Current().RelatedProducts)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("related-products", "error")), 0)
}

func TestRefresher_FailedNewerRefreshKeepsOlderResult(t *testing.T) {
	store := pipeline.NewStore()
	metrics := observability.NewMetricsForTesting()

	slowInc := &stubLoader{name: "incidents", body: incidentCSV, gate: make(chan struct{})}
	slow := pipeline.New(store, pipeline.Sources{
		Incidents:  slowInc,
		Facilities: &stubLoader{name: "facilities", body: facilityCSV},
	}, testReference(), discardLogger(), metrics)

	failingSources, failingInc, _ := newSources()
	failingInc.failures.Store(1)
	failing := pipeline.New(store, failingSources, testReference(), discardLogger(), metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- slow.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return slowInc.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, failing.Refresh(context.Background()), source.ErrNoSource)
	close(slowInc.gate)

	require.NoError(t, <-errCh)
	require.NotNil(t, store.Current())
	assert.Len(t, store.Current().Incidents, 2)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.StaleDiscarded), 0)
}

func TestRefresher_StaleResultDiscarded(t *testing.T) {
	store := pipeline.NewStore()
	metrics := observability.NewMetricsForTesting()

	slowInc := &stubLoader{name: "incidents", body: "Incident ID,Category,Coordinates\n1,Fire,\"1,1\"\n", gate: make(chan struct{})}
	slow := pipeline.New(store, pipeline.Sources{
		Incidents:  slowInc,
		Facilities: &stubLoader{name: "facilities", body: facilityCSV},
	}, testReference(), discardLogger(), metrics)

	fastSources, _, _ := newSources()
	fast := pipeline.New(store, fastSources, testReference(), discardLogger(), metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- slow.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return slowInc.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, fast.Refresh(context.Background()))
	close(slowInc.gate)

	require.ErrorIs(t, <-errCh, pipeline.ErrStale)
	assert.Len(t, store.Current().Incidents, 2, "newer result survives")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StaleDiscarded), 0)
}

func TestRefresher_Run_TicksAndTriggers(t *testing.T) {
	sources, inc, _ := newSources()
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics,
		pipeline.WithClock(clock), pipeline.WithInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return inc.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return inc.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	r.Trigger()
	require.Eventually(t, func() bool { return inc.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestRefresher_Run_BacksOffAfterFailure(t *testing.T) {
	sources, inc, _ := newSources()
	inc.failures.Store(1)
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), metrics,
		pipeline.WithClock(clock), pipeline.WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	// Ticker plus the backoff timer.
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RefreshErrors), 0)
	assert.Error(t, r.CheckReadiness(ctx))

	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return r.CheckReadiness(ctx) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), inc.calls.Load())

	cancel()
	require.NoError(t, <-errCh)
}

func TestRefresher_Run_CancelledContext(t *testing.T) {
	sources, _, _ := newSources()
	r := pipeline.New(pipeline.NewStore(), sources, testReference(), discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithClock(clockwork.NewFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Run(ctx))
}
