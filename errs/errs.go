// Package errs defines the sentinel errors shared across chronodb's packages.
//
// Callers should compare against these with errors.Is; call sites wrap them
// with additional context using fmt.Errorf("...: %w", errs.ErrXxx).
package errs

import "errors"

var (
	// ErrInvalidInput covers inverted time ranges, out-of-range codec deltas,
	// and unknown aggregation kinds.
	ErrInvalidInput = errors.New("chronodb: invalid input")

	// ErrNotFound is returned when a series, manifest, block or archive object
	// a reader requires is missing, when a codec iterator is exhausted, and by
	// the capacity estimator before it has enough samples. Queries treat a
	// missing tier as empty, not an error.
	ErrNotFound = errors.New("chronodb: not found")

	// ErrCorruption covers unknown codec prefixes, truncated bit streams, and
	// checksum mismatches on a stored block.
	ErrCorruption = errors.New("chronodb: corruption")

	// ErrIO wraps underlying disk or archive failures.
	ErrIO = errors.New("chronodb: io error")

	// ErrBusy is returned when a resource could not be acquired within a
	// bounded wait. Unused by the default single-exclusive-lock
	// implementation, which blocks indefinitely instead.
	ErrBusy = errors.New("chronodb: busy")

	// ErrInsufficientData is returned by bitio.Reader when a read runs past
	// the end of the underlying buffer.
	ErrInsufficientData = errors.New("chronodb: insufficient data")
)
