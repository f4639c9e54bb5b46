package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-analytics/internal/acquire"
	"github.com/couchcryptid/firewatch-analytics/internal/cache"
	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
	"github.com/couchcryptid/firewatch-analytics/internal/service"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

func detection(lat, lon float64, at time.Time) domain.FireDetection {
	return domain.FireDetection{
		Lat:        lat,
		Lon:        lon,
		AcquiredAt: at,
		Brightness: 320.0,
		Confidence: 80,
		FRP:        12.5,
		Satellite:  "Terra",
		Instrument: "MODIS",
		Source:     domain.SourceMODIS,
		DayNight:   "D",
	}
}

type acquireCall struct {
	sources []domain.Source
	start   time.Time
	end     time.Time
}

type fakeAcquirer struct {
	mu      sync.Mutex
	calls   []acquireCall
	records []domain.FireDetection
	report  *acquire.Report
	err     error
	block   chan struct{} // when set, Acquire waits until closed
}

func (f *fakeAcquirer) Acquire(ctx context.Context, sources []domain.Source, start, end time.Time) ([]domain.FireDetection, *acquire.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, acquireCall{sources: sources, start: start, end: end})
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	report := f.report
	if report == nil {
		report = &acquire.Report{Records: len(f.records)}
	}
	return f.records, report, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published [][]domain.FireDetection
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, records []domain.FireDetection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, records)
	return nil
}

type fixture struct {
	svc       *service.Service
	acquirer  *fakeAcquirer
	publisher *fakePublisher
	store     *store.Store
	cache     *cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	st := store.New(metrics)
	c := cache.New(metrics, nil)
	acquirer := &fakeAcquirer{}
	publisher := &fakePublisher{}

	opts := service.Options{
		Sources:         []domain.Source{domain.SourceMODIS},
		HistoricalStart: time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC),
		HistoricalEnd:   time.Date(2004, 12, 4, 0, 0, 0, 0, time.UTC),
		CacheTTL:        time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:       service.New(acquirer, st, c, publisher, opts, logger, metrics),
		acquirer:  acquirer,
		publisher: publisher,
		store:     st,
		cache:     c,
	}
}

func TestQueriesBeforeLoadNotReady(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FirePoints(domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrNotReady)

	_, err = f.svc.Statistics(domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrNotReady)

	assert.ErrorIs(t, f.svc.Ready(), domain.ErrNotReady)
	assert.Equal(t, "empty", f.svc.DataStatus().State)
}

func TestLoadHistorical(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
		detection(-16.0, -56.0, time.Date(2004, 7, 23, 14, 0, 0, 0, time.UTC)),
	}

	report, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 2, report.Total)

	require.NoError(t, f.svc.Ready())
	status := f.svc.DataStatus()
	assert.Equal(t, "ready", status.State)
	assert.Equal(t, 2, status.Records)

	require.Len(t, f.acquirer.calls, 1)
	assert.Equal(t, time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC), f.acquirer.calls[0].start)
	assert.Equal(t, time.Date(2004, 12, 4, 0, 0, 0, 0, time.UTC), f.acquirer.calls[0].end)
}

func TestLoadHistorical_AcquireErrorLeavesStoreEmpty(t *testing.T) {
	f := newFixture(t)
	f.acquirer.err = context.Canceled

	_, err := f.svc.LoadHistorical(context.Background())
	require.Error(t, err)

	assert.Equal(t, "empty", f.svc.DataStatus().State)
	assert.ErrorIs(t, f.svc.Ready(), domain.ErrNotReady)
}

func TestRefresh_RangeFromClock(t *testing.T) {
	now := time.Date(2004, 12, 4, 15, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	f := newFixture(t)
	_, err := f.svc.Refresh(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, f.acquirer.calls, 1)
	assert.Equal(t, now.AddDate(0, 0, -6), f.acquirer.calls[0].start)
	assert.Equal(t, now, f.acquirer.calls[0].end)
}

func TestRefresh_AppendsAndPublishesOnlyNewRecords(t *testing.T) {
	f := newFixture(t)
	existing := detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC))
	fresh := detection(-16.0, -56.0, time.Date(2004, 7, 23, 14, 0, 0, 0, time.UTC))

	f.acquirer.records = []domain.FireDetection{existing}
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	f.acquirer.records = []domain.FireDetection{existing, fresh}
	report, err := f.svc.Refresh(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 2, report.Total)

	require.Len(t, f.publisher.published, 1)
	require.Len(t, f.publisher.published[0], 1)
	assert.Equal(t, fresh.Lat, f.publisher.published[0][0].Lat)
}

func TestRefresh_PublishFailureDoesNotFailRefresh(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
	}
	f.publisher.err = errors.New("broker down")

	report, err := f.svc.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
}

func TestRefresh_PartialFailureStillAppends(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
	}
	f.acquirer.report = &acquire.Report{
		Records: 1,
		Failed: []acquire.WindowFailure{{
			Window: acquire.Window{Source: domain.SourceMODIS},
			Cause:  "upstream flake",
		}},
	}

	report, err := f.svc.Refresh(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	require.Len(t, report.Windows.Failed, 1)
	assert.Equal(t, "ready", f.svc.DataStatus().State)
}

func TestRefresh_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
	}
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	stats, err := f.svc.Statistics(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	f.acquirer.records = append(f.acquirer.records,
		detection(-16.0, -56.0, time.Date(2004, 7, 23, 14, 0, 0, 0, time.UTC)))
	_, err = f.svc.Refresh(context.Background(), 1)
	require.NoError(t, err)

	stats, err = f.svc.Statistics(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
}

func TestRefresh_DaysValidation(t *testing.T) {
	f := newFixture(t)
	for _, days := range []int{0, -1, 11} {
		_, err := f.svc.Refresh(context.Background(), days)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	}
}

func TestRefresh_RejectsConcurrentLoads(t *testing.T) {
	f := newFixture(t)
	f.acquirer.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.Refresh(context.Background(), 1)
	}()

	// Wait for the first refresh to reach the acquirer.
	require.Eventually(t, func() bool {
		f.acquirer.mu.Lock()
		defer f.acquirer.mu.Unlock()
		return len(f.acquirer.calls) == 1
	}, time.Second, time.Millisecond)

	_, err := f.svc.Refresh(context.Background(), 1)
	assert.ErrorIs(t, err, service.ErrRefreshInProgress)

	close(f.acquirer.block)
	<-done
}

func TestQueries_ServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
	}
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	filter := domain.Filter{MinConfidence: 50}
	_, err = f.svc.Statistics(filter)
	require.NoError(t, err)
	_, err = f.svc.Statistics(filter)
	require.NoError(t, err)

	status := f.svc.DataStatus()
	assert.Equal(t, uint64(1), status.Cache.Hits)
}

func TestHotspots_GridSizeOverride(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.1, -55.1, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
		detection(-15.4, -55.4, time.Date(2004, 7, 22, 14, 0, 0, 0, time.UTC)),
	}
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	// Half-degree default puts both records in one cell.
	hotspots, err := f.svc.Hotspots(0, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, hotspots, 1)

	// A quarter-degree grid splits them.
	hotspots, err = f.svc.Hotspots(0.25, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, hotspots, 2)
}

func TestNearby(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = []domain.FireDetection{
		detection(-15.0, -55.0, time.Date(2004, 7, 22, 13, 0, 0, 0, time.UTC)),
		detection(-18.0, -58.0, time.Date(2004, 7, 22, 14, 0, 0, 0, time.UTC)),
	}
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	got, err := f.svc.Nearby(-15.0, -55.0, 0.5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTemporalAnalysis_NoDataPassthrough(t *testing.T) {
	f := newFixture(t)
	f.acquirer.records = nil
	_, err := f.svc.LoadHistorical(context.Background())
	require.NoError(t, err)

	_, err = f.svc.TemporalAnalysis(domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrNoData)
}
