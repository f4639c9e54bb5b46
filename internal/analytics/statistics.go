// Package analytics computes derived views over a dataset snapshot. Every
// function is pure: the same snapshot and filter always yield the same
// result, which makes the outputs safe to cache.
package analytics

import (
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

// BBox is the axis-aligned bounding box of a record set.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Aggregate summarizes one numeric column.
type Aggregate struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// FRPAggregate adds the column total, which for fire radiative power is a
// meaningful quantity on its own.
type FRPAggregate struct {
	Aggregate
	Total float64 `json:"total"`
}

// Statistics is the summary view of a filtered record set. An empty set
// yields the zero value: zero counts and aggregates, never NaN.
type Statistics struct {
	Count               int                   `json:"count"`
	FirstDetection      time.Time             `json:"first_detection,omitzero"`
	LastDetection       time.Time             `json:"last_detection,omitzero"`
	BBox                BBox                  `json:"bbox"`
	Brightness          Aggregate             `json:"brightness"`
	FRP                 FRPAggregate          `json:"frp"`
	ConfidenceHistogram [10]int               `json:"confidence_histogram"`
	BySatellite         map[string]int        `json:"by_satellite"`
	BySource            map[domain.Source]int `json:"by_source"`
	DayCount            int                   `json:"day_count"`
	NightCount          int                   `json:"night_count"`
}

// ComputeStatistics aggregates the snapshot's records after applying the
// filter.
func ComputeStatistics(snap *store.Snapshot, f domain.Filter) (Statistics, error) {
	if err := f.Validate(); err != nil {
		return Statistics{}, err
	}

	records := f.Apply(snap.Records())
	stats := Statistics{
		BySatellite: make(map[string]int),
		BySource:    make(map[domain.Source]int),
	}
	if len(records) == 0 {
		return stats, nil
	}

	stats.Count = len(records)
	stats.FirstDetection = records[0].AcquiredAt
	stats.LastDetection = records[len(records)-1].AcquiredAt

	first := records[0]
	stats.BBox = BBox{MinLat: first.Lat, MinLon: first.Lon, MaxLat: first.Lat, MaxLon: first.Lon}
	stats.Brightness = Aggregate{Min: first.Brightness, Max: first.Brightness}
	stats.FRP = FRPAggregate{Aggregate: Aggregate{Min: first.FRP, Max: first.FRP}}

	var brightnessSum float64
	for _, r := range records {
		stats.BBox.MinLat = min(stats.BBox.MinLat, r.Lat)
		stats.BBox.MaxLat = max(stats.BBox.MaxLat, r.Lat)
		stats.BBox.MinLon = min(stats.BBox.MinLon, r.Lon)
		stats.BBox.MaxLon = max(stats.BBox.MaxLon, r.Lon)

		stats.Brightness.Min = min(stats.Brightness.Min, r.Brightness)
		stats.Brightness.Max = max(stats.Brightness.Max, r.Brightness)
		brightnessSum += r.Brightness

		stats.FRP.Min = min(stats.FRP.Min, r.FRP)
		stats.FRP.Max = max(stats.FRP.Max, r.FRP)
		stats.FRP.Total += r.FRP

		stats.ConfidenceHistogram[histogramBucket(r.Confidence)]++
		stats.BySatellite[r.Satellite]++
		stats.BySource[r.Source]++
		if r.DayNight == "N" {
			stats.NightCount++
		} else {
			stats.DayCount++
		}
	}

	n := float64(len(records))
	stats.Brightness.Mean = brightnessSum / n
	stats.FRP.Mean = stats.FRP.Total / n
	return stats, nil
}

// histogramBucket maps confidence to one of ten 10-wide buckets; a perfect
// 100 lands in the top bucket.
func histogramBucket(confidence int) int {
	if confidence >= 100 {
		return 9
	}
	return confidence / 10
}
