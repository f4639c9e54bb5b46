package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseResult reports the outcome of parsing a FIRMS CSV payload. Rejected
// counts rows that parsed but failed validation; those never reach the store.
type ParseResult struct {
	Records  []FireDetection
	Rejected int
}

// ParseCSV decodes a FIRMS area-CSV payload into validated detections.
// Expected columns (header-addressed, extra columns ignored):
//
//	latitude,longitude,brightness,scan,track,acq_date,acq_time,
//	satellite,instrument,confidence,version,bright_t31,frp,daynight,type
//
// An empty payload is valid and yields zero records. A payload whose header
// lacks the required columns is malformed.
func ParseCSV(r io.Reader, source Source) (ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return ParseResult{}, nil
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"latitude", "longitude", "acq_date", "acq_time"} {
		if _, ok := col[required]; !ok {
			return ParseResult{}, fmt.Errorf("malformed payload: missing column %q", required)
		}
	}

	var result ParseResult
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("read csv row: %w", err)
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		acquiredAt, err := parseAcquisition(field("acq_date"), field("acq_time"))
		if err != nil {
			result.Rejected++
			continue
		}

		d := FireDetection{
			Lat:        parseFloatOrZero(field("latitude")),
			Lon:        parseFloatOrZero(field("longitude")),
			AcquiredAt: acquiredAt,
			Brightness: parseFloatOrZero(field("brightness")),
			Confidence: parseConfidence(field("confidence")),
			FRP:        parseFloatOrZero(field("frp")),
			Satellite:  field("satellite"),
			Instrument: field("instrument"),
			Source:     source,
			DayNight:   strings.ToUpper(field("daynight")),
			Type:       DetectionType(parseIntOrZero(field("type"))),
		}

		if err := d.Validate(); err != nil {
			result.Rejected++
			continue
		}
		result.Records = append(result.Records, d)
	}

	return result, nil
}

// parseAcquisition combines acq_date (2006-01-02) with acq_time (HHMM,
// zero-padded to four digits) into a UTC timestamp.
func parseAcquisition(date, hhmm string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, err
	}

	for len(hhmm) < 4 {
		hhmm = "0" + hhmm
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return time.Time{}, fmt.Errorf("invalid acq_time %q", hhmm)
	}

	return day.Add(time.Duration(hour)*time.Hour + time.Duration(mins)*time.Minute), nil
}

// parseConfidence handles both MODIS numeric confidence (0-100) and the
// letter-coded VIIRS values: low, nominal, high.
func parseConfidence(s string) int {
	switch strings.ToLower(s) {
	case "l", "low":
		return 30
	case "n", "nominal":
		return 60
	case "h", "high":
		return 90
	}
	return parseIntOrZero(s)
}

func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOrZero(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
