package acquire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func detection(lat, lon float64, at time.Time) domain.FireDetection {
	return domain.FireDetection{
		Lat:        lat,
		Lon:        lon,
		AcquiredAt: at,
		Brightness: 320.5,
		Confidence: 80,
		FRP:        15.2,
		Satellite:  "Terra",
		Instrument: "MODIS",
		Source:     domain.SourceMODIS,
		DayNight:   "D",
	}
}

type fetchCall struct {
	source domain.Source
	start  time.Time
	end    time.Time
}

// fakeFetcher responds per call via respond and records every call it sees.
type fakeFetcher struct {
	calls   []fetchCall
	respond func(call fetchCall, n int) (domain.ParseResult, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, source domain.Source, start, end time.Time) (domain.ParseResult, error) {
	c := fetchCall{source: source, start: start, end: end}
	f.calls = append(f.calls, c)
	return f.respond(c, len(f.calls))
}

type fakeArchive struct {
	fakeFetcher
	start time.Time
	end   time.Time
}

func (a *fakeArchive) Covers(day time.Time) bool {
	return !day.Before(a.start) && !day.After(a.end)
}

func newTestManager(remote WindowFetcher, archive ArchiveFetcher) *Manager {
	opts := Options{
		RateLimitDelay:   0,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    4 * time.Millisecond,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(remote, archive, opts, logger, observability.NewMetricsForTesting())
}

func TestSplitRange(t *testing.T) {
	t.Run("long range splits at ten days", func(t *testing.T) {
		windows := SplitRange(domain.SourceMODIS, day(2004, 7, 22), day(2004, 8, 15))
		require.Len(t, windows, 3)
		assert.Equal(t, day(2004, 7, 22), windows[0].Start)
		assert.Equal(t, day(2004, 7, 31), windows[0].End)
		assert.Equal(t, day(2004, 8, 1), windows[1].Start)
		assert.Equal(t, day(2004, 8, 10), windows[1].End)
		assert.Equal(t, day(2004, 8, 11), windows[2].Start)
		assert.Equal(t, day(2004, 8, 15), windows[2].End)
		assert.Equal(t, 10, windows[0].Days())
		assert.Equal(t, 5, windows[2].Days())
	})

	t.Run("single day", func(t *testing.T) {
		windows := SplitRange(domain.SourceMODIS, day(2004, 8, 1), day(2004, 8, 1))
		require.Len(t, windows, 1)
		assert.Equal(t, 1, windows[0].Days())
	})

	t.Run("exactly ten days", func(t *testing.T) {
		windows := SplitRange(domain.SourceMODIS, day(2004, 7, 22), day(2004, 7, 31))
		require.Len(t, windows, 1)
		assert.Equal(t, 10, windows[0].Days())
	})
}

func TestAcquire_AllWindowsSucceed(t *testing.T) {
	remote := &fakeFetcher{
		respond: func(c fetchCall, _ int) (domain.ParseResult, error) {
			return domain.ParseResult{Records: []domain.FireDetection{
				detection(-15.3, -55.2, c.start.Add(13*time.Hour)),
			}}, nil
		},
	}

	m := newTestManager(remote, nil)
	records, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 7, 22), day(2004, 8, 15))
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Len(t, report.Completed, 3)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, report.Records)
	assert.Len(t, remote.calls, 3)
}

func TestAcquire_PartialFailureKeepsGoing(t *testing.T) {
	remote := &fakeFetcher{
		respond: func(c fetchCall, _ int) (domain.ParseResult, error) {
			if c.start.Equal(day(2004, 8, 1)) {
				return domain.ParseResult{}, &domain.TransientFetchError{Err: errors.New("upstream flake")}
			}
			return domain.ParseResult{Records: []domain.FireDetection{
				detection(-15.3, -55.2, c.start.Add(13*time.Hour)),
			}}, nil
		},
	}

	m := newTestManager(remote, nil)
	records, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 7, 22), day(2004, 8, 15))
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Len(t, report.Completed, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, day(2004, 8, 1), report.Failed[0].Window.Start)
	assert.Contains(t, report.Failed[0].Cause, "upstream flake")
	// Middle window was retried to the attempt budget.
	assert.Len(t, remote.calls, 5)
}

func TestAcquire_PermanentErrorNotRetried(t *testing.T) {
	remote := &fakeFetcher{
		respond: func(fetchCall, int) (domain.ParseResult, error) {
			return domain.ParseResult{}, &domain.PermanentFetchError{Err: errors.New("bad key")}
		},
	}

	m := newTestManager(remote, nil)
	_, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 8, 1), day(2004, 8, 1))
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Len(t, remote.calls, 1)
}

func TestAcquire_TransientThenSuccess(t *testing.T) {
	remote := &fakeFetcher{
		respond: func(c fetchCall, n int) (domain.ParseResult, error) {
			if n < 3 {
				return domain.ParseResult{}, &domain.TransientFetchError{Err: errors.New("timeout")}
			}
			return domain.ParseResult{Records: []domain.FireDetection{
				detection(-15.3, -55.2, c.start.Add(13*time.Hour)),
			}}, nil
		},
	}

	m := newTestManager(remote, nil)
	records, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 8, 1), day(2004, 8, 1))
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Len(t, report.Completed, 1)
	assert.Empty(t, report.Failed)
	assert.Len(t, remote.calls, 3)
}

func TestAcquire_DedupAcrossWindows(t *testing.T) {
	dup := detection(-15.3, -55.2, day(2004, 7, 31).Add(13*time.Hour))
	remote := &fakeFetcher{
		respond: func(c fetchCall, _ int) (domain.ParseResult, error) {
			return domain.ParseResult{Records: []domain.FireDetection{dup}}, nil
		},
	}

	m := newTestManager(remote, nil)
	records, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 7, 22), day(2004, 8, 10))
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 1, report.Records)
	assert.Len(t, report.Completed, 2)
}

func TestAcquire_MultipleSourcesSequential(t *testing.T) {
	remote := &fakeFetcher{
		respond: func(fetchCall, int) (domain.ParseResult, error) {
			return domain.ParseResult{}, nil
		},
	}

	m := newTestManager(remote, nil)
	_, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceVIIRSSNPP, domain.SourceVIIRSNOAA20},
		day(2020, 1, 1), day(2020, 1, 15))
	require.NoError(t, err)

	assert.Len(t, report.Completed, 4)
	require.Len(t, remote.calls, 4)
	assert.Equal(t, domain.SourceVIIRSSNPP, remote.calls[0].source)
	assert.Equal(t, domain.SourceVIIRSSNPP, remote.calls[1].source)
	assert.Equal(t, domain.SourceVIIRSNOAA20, remote.calls[2].source)
}

func TestAcquire_RejectsViirsBeforeEra(t *testing.T) {
	remote := &fakeFetcher{respond: func(fetchCall, int) (domain.ParseResult, error) {
		t.Fatal("no fetch expected")
		return domain.ParseResult{}, nil
	}}

	m := newTestManager(remote, nil)
	_, _, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceVIIRSSNPP}, day(2004, 7, 22), day(2004, 8, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedSourceEra)
}

func TestAcquire_RejectsInvertedRange(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, nil)
	_, _, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 8, 2), day(2004, 8, 1))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestAcquire_ArchiveSubstitution(t *testing.T) {
	archive := &fakeArchive{
		start: day(2004, 7, 22),
		end:   day(2004, 7, 31),
	}
	archive.respond = func(c fetchCall, _ int) (domain.ParseResult, error) {
		return domain.ParseResult{Records: []domain.FireDetection{
			detection(-10.0, -50.0, c.start.Add(time.Hour)),
		}}, nil
	}
	remote := &fakeFetcher{
		respond: func(c fetchCall, _ int) (domain.ParseResult, error) {
			return domain.ParseResult{Records: []domain.FireDetection{
				detection(-20.0, -60.0, c.start.Add(time.Hour)),
			}}, nil
		},
	}

	m := newTestManager(remote, archive)
	records, report, err := m.Acquire(context.Background(),
		[]domain.Source{domain.SourceMODIS}, day(2004, 7, 22), day(2004, 8, 5))
	require.NoError(t, err)

	// 7/22..7/31 from the archive, 8/1..8/5 from the live API.
	require.Len(t, archive.calls, 1)
	assert.Equal(t, day(2004, 7, 22), archive.calls[0].start)
	assert.Equal(t, day(2004, 7, 31), archive.calls[0].end)
	require.Len(t, remote.calls, 1)
	assert.Equal(t, day(2004, 8, 1), remote.calls[0].start)
	assert.Equal(t, day(2004, 8, 5), remote.calls[0].end)

	assert.Len(t, records, 2)
	assert.Len(t, report.Completed, 2)
}

func TestAcquire_CancelledBetweenWindows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeFetcher{
		respond: func(c fetchCall, n int) (domain.ParseResult, error) {
			if n == 1 {
				cancel()
			}
			return domain.ParseResult{Records: []domain.FireDetection{
				detection(-15.3, -55.2, c.start.Add(13*time.Hour)),
			}}, nil
		},
	}

	m := newTestManager(remote, nil)
	records, report, err := m.Acquire(ctx,
		[]domain.Source{domain.SourceMODIS}, day(2004, 7, 22), day(2004, 8, 15))
	require.ErrorIs(t, err, context.Canceled)

	// First window landed before the cancel was observed.
	assert.Len(t, records, 1)
	assert.Len(t, report.Completed, 1)
	assert.Len(t, remote.calls, 1)
}
