package analytics

import (
	"fmt"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/store"
)

// Nearby returns the filtered detections within radius degrees of the
// given point, as axis-aligned bounding box membership rather than
// geodesic distance. Results keep the snapshot's temporal order.
func Nearby(snap *store.Snapshot, lat, lon, radius float64, f domain.Filter) ([]domain.FireDetection, error) {
	if lat < -90 || lat > 90 {
		return nil, &domain.ValidationError{Field: "lat", Reason: fmt.Sprintf("latitude %.4f out of range", lat)}
	}
	if lon < -180 || lon > 180 {
		return nil, &domain.ValidationError{Field: "lon", Reason: fmt.Sprintf("longitude %.4f out of range", lon)}
	}
	if radius <= 0 {
		return nil, &domain.ValidationError{Field: "radius", Reason: "radius must be positive"}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	candidates := snap.InBounds(lat-radius, lon-radius, lat+radius, lon+radius)
	return f.Apply(candidates), nil
}
