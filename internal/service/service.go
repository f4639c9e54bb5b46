// Package service is the outward query and refresh interface. All reads go
// through the derived-view cache; all writes go through the acquisition
// manager and dataset store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/acquire"
	"github.com/couchcryptid/firewatch-analytics/internal/analytics"
	"github.com/couchcryptid/firewatch-analytics/internal/cache"
	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

// ErrRefreshInProgress rejects a refresh while another load is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Acquirer fetches detections over a date range.
type Acquirer interface {
	Acquire(ctx context.Context, sources []domain.Source, start, end time.Time) ([]domain.FireDetection, *acquire.Report, error)
}

// Publisher pushes newly ingested detections to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, records []domain.FireDetection) error
}

// Options fix the service's acquisition range and view policies.
type Options struct {
	Sources         []domain.Source
	HistoricalStart time.Time
	HistoricalEnd   time.Time
	CacheTTL        time.Duration
	Hotspots        analytics.HotspotPolicy
}

// Service orchestrates the dataset lifecycle and serves cached views.
type Service struct {
	acquirer  Acquirer
	store     *store.Store
	cache     *cache.Cache
	publisher Publisher // nil when the sink is disabled
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	loadMu sync.Mutex
}

// New creates a service. publisher may be nil.
func New(acquirer Acquirer, st *store.Store, c *cache.Cache, publisher Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Hotspots.GridSize == 0 {
		opts.Hotspots = analytics.DefaultHotspotPolicy()
	}
	return &Service{
		acquirer:  acquirer,
		store:     st,
		cache:     c,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// RefreshReport summarizes one refresh or historical load.
type RefreshReport struct {
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Added   int             `json:"added"`
	Total   int             `json:"total"`
	Windows *acquire.Report `json:"windows"`
}

// LoadHistorical replaces the dataset from the configured historical range.
func (s *Service) LoadHistorical(ctx context.Context) (*RefreshReport, error) {
	if !s.loadMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.loadMu.Unlock()

	started := domain.Now()
	s.metrics.RefreshRunning.Set(1)
	defer s.metrics.RefreshRunning.Set(0)
	defer func() { s.metrics.RefreshDuration.Observe(time.Since(started).Seconds()) }()

	s.store.BeginLoad()
	records, report, err := s.acquirer.Acquire(ctx, s.opts.Sources, s.opts.HistoricalStart, s.opts.HistoricalEnd)
	if err != nil {
		s.store.AbortLoad()
		return nil, fmt.Errorf("historical load: %w", err)
	}

	snap := s.store.Replace(records)
	s.cache.InvalidateAll()
	s.logger.Info("historical load complete",
		"records", snap.Len(), "failed_windows", len(report.Failed))

	return &RefreshReport{
		Start:   s.opts.HistoricalStart,
		End:     s.opts.HistoricalEnd,
		Added:   snap.Len(),
		Total:   snap.Len(),
		Windows: report,
	}, nil
}

// Refresh acquires the most recent days of data, appends the new records,
// invalidates the cache, and publishes what was appended. A partially
// failed acquisition still appends what it got and reports the gaps.
func (s *Service) Refresh(ctx context.Context, days int) (*RefreshReport, error) {
	if days < 1 || days > 10 {
		return nil, &domain.ValidationError{Field: "days", Reason: fmt.Sprintf("days %d outside 1..10", days)}
	}
	if !s.loadMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.loadMu.Unlock()

	started := domain.Now()
	s.metrics.RefreshRunning.Set(1)
	defer s.metrics.RefreshRunning.Set(0)
	defer func() { s.metrics.RefreshDuration.Observe(time.Since(started).Seconds()) }()

	end := started
	start := end.AddDate(0, 0, -(days - 1))

	s.store.BeginLoad()
	records, report, err := s.acquirer.Acquire(ctx, s.opts.Sources, start, end)
	if err != nil {
		s.store.AbortLoad()
		return nil, fmt.Errorf("refresh: %w", err)
	}

	added, snap := s.store.Append(records)
	s.cache.InvalidateAll()
	s.logger.Info("refresh complete", "added", len(added),
		"total", snap.Len(), "failed_windows", len(report.Failed))

	if s.publisher != nil && len(added) > 0 {
		if err := s.publisher.Publish(ctx, added); err != nil {
			// Publication is best effort; the dataset already moved on.
			s.logger.Error("publish appended detections", "error", err, "count", len(added))
		} else {
			s.metrics.DetectionsPublished.Add(float64(len(added)))
		}
	}

	return &RefreshReport{
		Start:   start,
		End:     end,
		Added:   len(added),
		Total:   snap.Len(),
		Windows: report,
	}, nil
}

// FirePoints returns the filtered detections.
func (s *Service) FirePoints(filter domain.Filter) ([]domain.FireDetection, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	v, err := s.cache.GetOrCompute("fires|"+filter.CanonicalKey(), s.opts.CacheTTL, func() (any, error) {
		return filter.Apply(snap.Records()), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.FireDetection), nil
}

// Statistics returns the summary view of the filtered dataset.
func (s *Service) Statistics(filter domain.Filter) (analytics.Statistics, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return analytics.Statistics{}, err
	}

	v, err := s.cache.GetOrCompute("stats|"+filter.CanonicalKey(), s.opts.CacheTTL, func() (any, error) {
		return analytics.ComputeStatistics(snap, filter)
	})
	if err != nil {
		return analytics.Statistics{}, err
	}
	return v.(analytics.Statistics), nil
}

// TemporalAnalysis returns the per-day series and peak day.
func (s *Service) TemporalAnalysis(filter domain.Filter) (analytics.Temporal, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return analytics.Temporal{}, err
	}

	v, err := s.cache.GetOrCompute("temporal|"+filter.CanonicalKey(), s.opts.CacheTTL, func() (any, error) {
		return analytics.ComputeTemporal(snap, filter)
	})
	if err != nil {
		return analytics.Temporal{}, err
	}
	return v.(analytics.Temporal), nil
}

// Hotspots returns grid-cell clusters. A zero gridSize uses the configured
// default.
func (s *Service) Hotspots(gridSize float64, filter domain.Filter) ([]analytics.Hotspot, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}

	policy := s.opts.Hotspots
	if gridSize > 0 {
		policy.GridSize = gridSize
	}

	key := fmt.Sprintf("hotspots|grid=%g|%s", policy.GridSize, filter.CanonicalKey())
	v, err := s.cache.GetOrCompute(key, s.opts.CacheTTL, func() (any, error) {
		return analytics.ComputeHotspots(snap, filter, policy)
	})
	if err != nil {
		return nil, err
	}
	return v.([]analytics.Hotspot), nil
}

// Nearby returns detections within radius degrees of the point.
func (s *Service) Nearby(lat, lon, radius float64) ([]domain.FireDetection, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("nearby|%.5f|%.5f|%g", lat, lon, radius)
	v, err := s.cache.GetOrCompute(key, s.opts.CacheTTL, func() (any, error) {
		return analytics.Nearby(snap, lat, lon, radius, domain.Filter{})
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.FireDetection), nil
}

// Status describes the dataset and cache at a point in time.
type Status struct {
	State      string                `json:"state"`
	Records    int                   `json:"records"`
	Sources    map[domain.Source]int `json:"sources"`
	RangeStart time.Time             `json:"range_start,omitzero"`
	RangeEnd   time.Time             `json:"range_end,omitzero"`
	FetchedAt  time.Time             `json:"fetched_at,omitzero"`
	Cache      cache.Stats           `json:"cache"`
}

// DataStatus reports dataset lifecycle state, held range, and cache stats.
// It never returns an error: an unloaded dataset reports as empty.
func (s *Service) DataStatus() Status {
	status := Status{
		State: s.store.State().String(),
		Cache: s.cache.Stats(),
	}
	snap, err := s.store.Snapshot()
	if err != nil {
		return status
	}

	status.Records = snap.Len()
	status.Sources = snap.SourceCounts()
	status.RangeStart, status.RangeEnd = snap.Range()
	status.FetchedAt = snap.FetchedAt()
	return status
}

// Ready reports whether the dataset can serve queries. It backs the
// readiness endpoint.
func (s *Service) Ready() error {
	_, err := s.store.Snapshot()
	return err
}
