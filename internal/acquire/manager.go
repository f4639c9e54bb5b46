package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
)

// WindowFetcher retrieves the detections for one acquisition window.
type WindowFetcher interface {
	Fetch(ctx context.Context, source domain.Source, start, end time.Time) (domain.ParseResult, error)
}

// ArchiveFetcher is a WindowFetcher with a bounded coverage span.
type ArchiveFetcher interface {
	WindowFetcher
	Covers(day time.Time) bool
}

// Options tune acquisition pacing and retry policy.
type Options struct {
	RateLimitDelay   time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// WindowFailure records a window abandoned after exhausting its retries.
type WindowFailure struct {
	Window Window `json:"window"`
	Cause  string `json:"cause"`
}

// Report summarizes one acquisition run. A run with failed windows still
// yields the records of its completed windows.
type Report struct {
	Completed []Window        `json:"completed"`
	Failed    []WindowFailure `json:"failed"`
	Records   int             `json:"records"`
	Rejected  int             `json:"rejected"`
}

// Manager drives sequential, rate-limited window acquisition over a remote
// fetcher, substituting the archive fetcher for windows inside its span.
type Manager struct {
	remote  WindowFetcher
	archive ArchiveFetcher // nil when no local archive is configured
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager creates an acquisition manager. archive may be nil.
func NewManager(remote WindowFetcher, archive ArchiveFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		remote:  remote,
		archive: archive,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Acquire fetches all detections for the given sources over the inclusive
// [start, end] date range, deduplicated on (lat, lon, acquiredAt, source).
//
// Windows are fetched sequentially in chronological order per source. A
// window that fails permanently, or transiently past the retry budget, is
// recorded in the report and skipped; the rest of the run continues. On
// context cancellation the records and report accumulated so far are
// returned alongside the context error.
func (m *Manager) Acquire(ctx context.Context, sources []domain.Source, start, end time.Time) ([]domain.FireDetection, *Report, error) {
	start, end = truncateDay(start), truncateDay(end)
	if err := validateRange(sources, start, end); err != nil {
		return nil, nil, err
	}

	var windows []Window
	for _, src := range sources {
		windows = append(windows, m.planWindows(src, start, end)...)
	}

	report := &Report{}
	var records []domain.FireDetection
	firstRemote := true

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return records, report, err
		}

		result, err := m.fetchWindow(ctx, w, &firstRemote)
		if err != nil {
			if ctx.Err() != nil {
				return records, report, ctx.Err()
			}
			m.metrics.WindowsFailed.Inc()
			m.logger.Error("window failed", "window", w.String(), "error", err)
			report.Failed = append(report.Failed, WindowFailure{Window: w, Cause: err.Error()})
			continue
		}

		m.metrics.WindowsCompleted.Inc()
		m.metrics.RecordsRejected.Add(float64(result.Rejected))
		report.Completed = append(report.Completed, w)
		report.Rejected += result.Rejected
		records = append(records, result.Records...)
		m.logger.Debug("window completed", "window", w.String(),
			"records", len(result.Records), "rejected", result.Rejected)
	}

	records = domain.Dedup(records)
	report.Records = len(records)
	return records, report, nil
}

func validateRange(sources []domain.Source, start, end time.Time) error {
	if len(sources) == 0 {
		return &domain.ValidationError{Field: "sources", Reason: "at least one source required"}
	}
	if end.Before(start) {
		return &domain.ValidationError{Field: "range", Reason: "end precedes start"}
	}
	for _, src := range sources {
		if _, err := domain.ParseSource(string(src)); err != nil {
			return err
		}
		if !src.SupportsDate(start) {
			return fmt.Errorf("%s from %s: %w", src, start.Format(time.DateOnly), domain.ErrUnsupportedSourceEra)
		}
	}
	return nil
}

// planWindows splits the range at the archive coverage boundary so each
// window is served wholly by one fetcher, then into API-sized windows.
func (m *Manager) planWindows(source domain.Source, start, end time.Time) []Window {
	if m.archive == nil {
		return SplitRange(source, start, end)
	}

	var windows []Window
	segStart := start
	inArchive := m.archive.Covers(segStart)
	for cur := start.AddDate(0, 0, 1); !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		if m.archive.Covers(cur) == inArchive {
			continue
		}
		windows = append(windows, SplitRange(source, segStart, cur.AddDate(0, 0, -1))...)
		segStart = cur
		inArchive = !inArchive
	}
	return append(windows, SplitRange(source, segStart, end)...)
}

// fetchWindow runs one window attempt loop. Archive windows are served
// locally with no pacing delay; remote windows are rate limited and retried
// on transient failures with doubling backoff.
func (m *Manager) fetchWindow(ctx context.Context, w Window, firstRemote *bool) (domain.ParseResult, error) {
	if m.archive != nil && m.archive.Covers(w.Start) && m.archive.Covers(w.End) {
		return m.timedFetch(ctx, m.archive, w)
	}

	backoff := m.opts.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt < m.opts.RetryMaxAttempts; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, backoff) {
				return domain.ParseResult{}, ctx.Err()
			}
			backoff = nextBackoff(backoff, m.opts.RetryMaxDelay)
		}

		if *firstRemote {
			*firstRemote = false
		} else if !sleepWithContext(ctx, m.opts.RateLimitDelay) {
			return domain.ParseResult{}, ctx.Err()
		}

		result, err := m.timedFetch(ctx, m.remote, w)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if domain.IsPermanent(err) || ctx.Err() != nil {
			return domain.ParseResult{}, err
		}
		m.logger.Warn("window fetch retry", "window", w.String(), "attempt", attempt+1, "error", err)
	}
	return domain.ParseResult{}, fmt.Errorf("after %d attempts: %w", m.opts.RetryMaxAttempts, lastErr)
}

func (m *Manager) timedFetch(ctx context.Context, f WindowFetcher, w Window) (domain.ParseResult, error) {
	started := time.Now()
	result, err := f.Fetch(ctx, w.Source, w.Start, w.End)
	m.metrics.FetchDuration.WithLabelValues(string(w.Source)).Observe(time.Since(started).Seconds())
	m.metrics.FetchRequests.WithLabelValues(string(w.Source), fetchOutcome(err)).Inc()
	return result, err
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsPermanent(err):
		return "permanent_error"
	default:
		return "transient_error"
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
