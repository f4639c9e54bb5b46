package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Source identifies a FIRMS data product (satellite + processing chain).
type Source string

const (
	SourceMODIS       Source = "MODIS_SP"
	SourceVIIRSSNPP   Source = "VIIRS_SNPP_SP"
	SourceVIIRSNOAA20 Source = "VIIRS_NOAA20_SP"
)

// Sources lists every recognized source in a stable order.
func Sources() []Source {
	return []Source{SourceMODIS, SourceVIIRSSNPP, SourceVIIRSNOAA20}
}

// ParseSource validates a source identifier string.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceMODIS, SourceVIIRSSNPP, SourceVIIRSNOAA20:
		return Source(s), nil
	default:
		return "", &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", s)}
	}
}

// viirsEraStart is the S-NPP first-light date; neither VIIRS product has data
// before it.
var viirsEraStart = time.Date(2012, time.January, 20, 0, 0, 0, 0, time.UTC)

// SupportsDate reports whether the source has data for the given date.
func (s Source) SupportsDate(t time.Time) bool {
	switch s {
	case SourceVIIRSSNPP, SourceVIIRSNOAA20:
		return !t.Before(viirsEraStart)
	default:
		return true
	}
}

// DetectionType classifies the thermal anomaly, following the FIRMS "type" column.
type DetectionType int

const (
	TypeVegetationFire DetectionType = 0
	TypeActiveVolcano  DetectionType = 1
	TypeOtherStatic    DetectionType = 2
	TypeOffshore       DetectionType = 3
)

// FireDetection is a single normalized satellite fire-detection record.
// It is immutable once validated; analytics and the dataset store never
// modify records in place.
type FireDetection struct {
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	AcquiredAt time.Time     `json:"acquired_at"` // UTC
	Brightness float64       `json:"brightness"`  // Kelvin
	Confidence int           `json:"confidence"`  // 0-100
	FRP        float64       `json:"frp"`         // megawatts
	Satellite  string        `json:"satellite"`
	Instrument string        `json:"instrument"`
	Source     Source        `json:"source"`
	DayNight   string        `json:"day_night"` // "D" or "N"
	Type       DetectionType `json:"type"`
}

// Validate rejects records that must not enter the dataset.
func (d FireDetection) Validate() error {
	if d.Lat < -90 || d.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("latitude %.4f out of range", d.Lat)}
	}
	if d.Lon < -180 || d.Lon > 180 {
		return &ValidationError{Field: "lon", Reason: fmt.Sprintf("longitude %.4f out of range", d.Lon)}
	}
	if d.AcquiredAt.IsZero() {
		return &ValidationError{Field: "acquired_at", Reason: "missing acquisition time"}
	}
	if d.Brightness <= 0 {
		return &ValidationError{Field: "brightness", Reason: "brightness must be positive"}
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("confidence %d out of range", d.Confidence)}
	}
	if d.FRP < 0 {
		return &ValidationError{Field: "frp", Reason: "frp must be non-negative"}
	}
	if d.Source == "" {
		return &ValidationError{Field: "source", Reason: "missing source"}
	}
	return nil
}

// Key identifies a detection for deduplication. Overlapping acquisition
// windows yield exact duplicates on these four fields.
type Key struct {
	Lat    float64
	Lon    float64
	AtUnix int64
	Source Source
}

func (d FireDetection) Key() Key {
	return Key{Lat: d.Lat, Lon: d.Lon, AtUnix: d.AcquiredAt.Unix(), Source: d.Source}
}

// ID produces a deterministic identifier from the dedup key fields, so a
// record republished downstream keeps the same identity on replay.
func (d FireDetection) ID() string {
	input := fmt.Sprintf("%.5f|%.5f|%d|%s", d.Lat, d.Lon, d.AcquiredAt.Unix(), d.Source)
	hash := sha256.Sum256([]byte(input))
	return "fire-" + hex.EncodeToString(hash[:8])
}

// Dedup drops exact duplicates, keeping the first occurrence. Order of the
// surviving records is preserved.
func Dedup(records []FireDetection) []FireDetection {
	seen := make(map[Key]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
