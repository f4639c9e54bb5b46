package analytics

import (
	"math"
	"sort"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

// HotspotPolicy tunes clustering: cell size in degrees, intensity tier
// thresholds on cluster count, and how many clusters to return.
type HotspotPolicy struct {
	GridSize        float64
	MediumThreshold int
	HighThreshold   int
	Limit           int
}

// DefaultHotspotPolicy matches the standard half-degree clustering.
func DefaultHotspotPolicy() HotspotPolicy {
	return HotspotPolicy{
		GridSize:        0.5,
		MediumThreshold: 50,
		HighThreshold:   100,
		Limit:           50,
	}
}

// Hotspot is one grid-cell cluster of detections.
type Hotspot struct {
	CentroidLat   float64 `json:"centroid_lat"` // cell midpoint
	CentroidLon   float64 `json:"centroid_lon"`
	Count         int     `json:"count"`
	TotalFRP      float64 `json:"total_frp"`
	AvgFRP        float64 `json:"avg_frp"`
	AvgConfidence float64 `json:"avg_confidence"`
	Intensity     string  `json:"intensity"` // high, medium, low
}

type cellIdx struct {
	lat int
	lon int
}

// ComputeHotspots clusters the filtered records into fixed grid cells.
// Cell assignment floors the coordinate onto the grid, so a cell spans
// [i*size, (i+1)*size) on each axis and its centroid is the cell midpoint.
// Clusters rank by count descending, ties broken by centroid latitude then
// longitude, truncated to the policy limit.
func ComputeHotspots(snap *store.Snapshot, f domain.Filter, policy HotspotPolicy) ([]Hotspot, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if policy.GridSize <= 0 {
		return nil, &domain.ValidationError{Field: "grid_size", Reason: "grid size must be positive"}
	}
	if policy.Limit <= 0 {
		policy.Limit = DefaultHotspotPolicy().Limit
	}

	records := f.Apply(snap.Records())

	type cellAgg struct {
		count         int
		totalFRP      float64
		confidenceSum int
	}
	cells := make(map[cellIdx]*cellAgg)
	for _, r := range records {
		idx := cellIdx{
			lat: int(math.Floor(r.Lat / policy.GridSize)),
			lon: int(math.Floor(r.Lon / policy.GridSize)),
		}
		agg, ok := cells[idx]
		if !ok {
			agg = &cellAgg{}
			cells[idx] = agg
		}
		agg.count++
		agg.totalFRP += r.FRP
		agg.confidenceSum += r.Confidence
	}

	hotspots := make([]Hotspot, 0, len(cells))
	for idx, agg := range cells {
		n := float64(agg.count)
		hotspots = append(hotspots, Hotspot{
			CentroidLat:   (float64(idx.lat) + 0.5) * policy.GridSize,
			CentroidLon:   (float64(idx.lon) + 0.5) * policy.GridSize,
			Count:         agg.count,
			TotalFRP:      agg.totalFRP,
			AvgFRP:        agg.totalFRP / n,
			AvgConfidence: float64(agg.confidenceSum) / n,
			Intensity:     intensity(agg.count, policy),
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		a, b := hotspots[i], hotspots[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.CentroidLat != b.CentroidLat {
			return a.CentroidLat < b.CentroidLat
		}
		return a.CentroidLon < b.CentroidLon
	})

	if len(hotspots) > policy.Limit {
		hotspots = hotspots[:policy.Limit]
	}
	return hotspots, nil
}

func intensity(count int, policy HotspotPolicy) string {
	switch {
	case count > policy.HighThreshold:
		return "high"
	case count > policy.MediumThreshold:
		return "medium"
	default:
		return "low"
	}
}
