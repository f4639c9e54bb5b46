package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter narrows a record set before any aggregation runs, so every derived
// statistic stays consistent with what the caller asked for.
// Zero values mean "no constraint".
type Filter struct {
	From          time.Time // inclusive, date precision
	To            time.Time // inclusive
	MinConfidence int
	Sources       []Source
}

// Validate rejects impossible filters before any computation.
func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return &ValidationError{Field: "date_range", Reason: "to precedes from"}
	}
	if f.MinConfidence < 0 || f.MinConfidence > 100 {
		return &ValidationError{Field: "min_confidence", Reason: fmt.Sprintf("min confidence %d out of range", f.MinConfidence)}
	}
	for _, s := range f.Sources {
		if _, err := ParseSource(string(s)); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether a record passes the filter.
func (f Filter) Match(d FireDetection) bool {
	if !f.From.IsZero() && d.AcquiredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.AcquiredAt.After(f.To.Add(24*time.Hour-time.Nanosecond)) {
		return false
	}
	if d.Confidence < f.MinConfidence {
		return false
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if d.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply returns the subset of records passing the filter, preserving order.
func (f Filter) Apply(records []FireDetection) []FireDetection {
	if f.IsZero() {
		return records
	}
	out := make([]FireDetection, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() && f.MinConfidence == 0 && len(f.Sources) == 0
}

// CanonicalKey encodes the filter deterministically for cache keying: two
// logically identical filters produce identical keys regardless of how the
// caller ordered the sources.
func (f Filter) CanonicalKey() string {
	sources := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		sources[i] = string(s)
	}
	sort.Strings(sources)

	var b strings.Builder
	b.WriteString("from=")
	if !f.From.IsZero() {
		b.WriteString(f.From.UTC().Format("2006-01-02"))
	}
	b.WriteString("|to=")
	if !f.To.IsZero() {
		b.WriteString(f.To.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "|minconf=%d|sources=%s", f.MinConfidence, strings.Join(sources, ","))
	return b.String()
}
