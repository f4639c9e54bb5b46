package analytics

import (
	"sort"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

// DayBucket is one day of the temporal series.
type DayBucket struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Count    int     `json:"count"`
	TotalFRP float64 `json:"total_frp"`
}

// Temporal is the per-day trend of a filtered record set.
type Temporal struct {
	Series  []DayBucket `json:"series"`
	PeakDay DayBucket   `json:"peak_day"`
}

// ComputeTemporal buckets the filtered records per UTC day and finds the
// peak. A filter that matches nothing yields ErrNoData: there is no peak
// of an empty series.
func ComputeTemporal(snap *store.Snapshot, f domain.Filter) (Temporal, error) {
	if err := f.Validate(); err != nil {
		return Temporal{}, err
	}

	records := f.Apply(snap.Records())
	if len(records) == 0 {
		return Temporal{}, domain.ErrNoData
	}

	buckets := make(map[string]*DayBucket)
	for _, r := range records {
		date := r.AcquiredAt.UTC().Format(time.DateOnly)
		b, ok := buckets[date]
		if !ok {
			b = &DayBucket{Date: date}
			buckets[date] = b
		}
		b.Count++
		b.TotalFRP += r.FRP
	}

	series := make([]DayBucket, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, *b)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

	// Highest count wins; the series is date-ordered, so a tie keeps the
	// earliest day.
	peak := series[0]
	for _, b := range series[1:] {
		if b.Count > peak.Count {
			peak = b
		}
	}

	return Temporal{Series: series, PeakDay: peak}, nil
}
