package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned for queries against a dataset that has never
	// completed a load. Distinct from an empty-but-loaded dataset.
	ErrNotReady = errors.New("dataset not loaded yet")

	// ErrNoData is returned where an operation explicitly requires a
	// non-empty input, such as peak-day detection.
	ErrNoData = errors.New("no data available")

	// ErrUnsupportedSourceEra rejects acquisition ranges that predate a
	// source's first observations.
	ErrUnsupportedSourceEra = errors.New("date range predates source availability")
)

// ValidationError rejects bad input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientFetchError marks a window fetch failure worth retrying:
// timeouts, 5xx responses, malformed payloads.
type TransientFetchError struct {
	Err error
}

func (e *TransientFetchError) Error() string { return "transient fetch error: " + e.Err.Error() }
func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentFetchError marks a window fetch failure that retrying cannot fix,
// such as a 4xx response.
type PermanentFetchError struct {
	Err error
}

func (e *PermanentFetchError) Error() string { return "permanent fetch error: " + e.Err.Error() }
func (e *PermanentFetchError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is (or wraps) a PermanentFetchError.
func IsPermanent(err error) bool {
	var pe *PermanentFetchError
	return errors.As(err, &pe)
}
