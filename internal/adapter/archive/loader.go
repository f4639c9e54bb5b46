package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// Loader serves detections from a local archive CSV for date ranges the
// live API no longer covers. The file is read once on first use and
// filtered per window after that.
type Loader struct {
	path   string
	start  time.Time
	end    time.Time
	logger *slog.Logger

	once    sync.Once
	loadErr error
	records []domain.FireDetection
}

// NewLoader creates an archive loader covering the inclusive [start, end]
// date range.
func NewLoader(path string, start, end time.Time, logger *slog.Logger) *Loader {
	return &Loader{
		path:   path,
		start:  start,
		end:    end,
		logger: logger,
	}
}

// Covers reports whether the archive can serve the given date.
func (l *Loader) Covers(day time.Time) bool {
	return !day.Before(l.start) && !day.After(l.end)
}

// Fetch returns archived detections for source within [start, end].
func (l *Loader) Fetch(ctx context.Context, source domain.Source, start, end time.Time) (domain.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}

	l.once.Do(l.load)
	if l.loadErr != nil {
		return domain.ParseResult{}, &domain.PermanentFetchError{Err: l.loadErr}
	}

	endExclusive := end.AddDate(0, 0, 1)
	var out []domain.FireDetection
	for _, rec := range l.records {
		if rec.Source != source {
			continue
		}
		if rec.AcquiredAt.Before(start) || !rec.AcquiredAt.Before(endExclusive) {
			continue
		}
		out = append(out, rec)
	}
	return domain.ParseResult{Records: out}, nil
}

func (l *Loader) load() {
	f, err := os.Open(l.path)
	if err != nil {
		l.loadErr = fmt.Errorf("open archive: %w", err)
		return
	}
	defer f.Close()

	// Archive files carry MODIS standard-processing rows.
	result, err := domain.ParseCSV(f, domain.SourceMODIS)
	if err != nil {
		l.loadErr = fmt.Errorf("parse archive: %w", err)
		return
	}

	l.records = result.Records
	if result.Rejected > 0 {
		l.logger.Warn("archive rows rejected", "path", l.path, "rejected", result.Rejected)
	}
	l.logger.Info("archive loaded", "path", l.path, "records", len(l.records))
}
