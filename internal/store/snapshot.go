package store

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// CellKey addresses a fixed one-degree bucket of the snapshot's spatial index.
type CellKey struct {
	LatIdx int
	LonIdx int
}

func cellFor(lat, lon float64) CellKey {
	return CellKey{
		LatIdx: int(math.Floor(lat)),
		LonIdx: int(math.Floor(lon)),
	}
}

// Snapshot is an immutable view of the dataset. Writers build a fresh
// snapshot and swap it in; readers keep using the one they hold.
type Snapshot struct {
	records      []domain.FireDetection
	grid         map[CellKey][]int
	sourceCounts map[domain.Source]int
	start        time.Time
	end          time.Time
	fetchedAt    time.Time
}

func newSnapshot(records []domain.FireDetection, fetchedAt time.Time) *Snapshot {
	sorted := make([]domain.FireDetection, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		if a.Lat != b.Lat {
			return a.Lat < b.Lat
		}
		if a.Lon != b.Lon {
			return a.Lon < b.Lon
		}
		return a.Source < b.Source
	})

	s := &Snapshot{
		records:      sorted,
		grid:         make(map[CellKey][]int),
		sourceCounts: make(map[domain.Source]int),
		fetchedAt:    fetchedAt,
	}
	for i, r := range sorted {
		key := cellFor(r.Lat, r.Lon)
		s.grid[key] = append(s.grid[key], i)
		s.sourceCounts[r.Source]++
	}
	if len(sorted) > 0 {
		s.start = sorted[0].AcquiredAt
		s.end = sorted[len(sorted)-1].AcquiredAt
	}
	return s
}

// Records returns the snapshot's records sorted by acquisition time.
// Callers must treat the slice as read-only.
func (s *Snapshot) Records() []domain.FireDetection {
	return s.records
}

// Len returns the record count.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// SourceCounts returns per-source record counts. Callers must not modify
// the returned map.
func (s *Snapshot) SourceCounts() map[domain.Source]int {
	return s.sourceCounts
}

// Range returns the earliest and latest acquisition times held. Both are
// zero for an empty snapshot.
func (s *Snapshot) Range() (time.Time, time.Time) {
	return s.start, s.end
}

// FetchedAt returns when the snapshot's data was last acquired.
func (s *Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// InBounds returns the records inside the axis-aligned bounding box,
// pre-filtered through the one-degree grid index.
func (s *Snapshot) InBounds(minLat, minLon, maxLat, maxLon float64) []domain.FireDetection {
	if minLat > maxLat || minLon > maxLon {
		return nil
	}

	loLat, hiLat := int(math.Floor(minLat)), int(math.Floor(maxLat))
	loLon, hiLon := int(math.Floor(minLon)), int(math.Floor(maxLon))

	var out []domain.FireDetection
	for latIdx := loLat; latIdx <= hiLat; latIdx++ {
		for lonIdx := loLon; lonIdx <= hiLon; lonIdx++ {
			for _, i := range s.grid[CellKey{LatIdx: latIdx, LonIdx: lonIdx}] {
				r := s.records[i]
				if r.Lat >= minLat && r.Lat <= maxLat && r.Lon >= minLon && r.Lon <= maxLon {
					out = append(out, r)
				}
			}
		}
	}

	// Grid iteration order is spatial; restore temporal order.
	sort.Slice(out, func(i, j int) bool {
		return out[i].AcquiredAt.Before(out[j].AcquiredAt)
	})
	return out
}
