package pipeline

import "errors"

// Fatal error kinds. Per-record failures are not errors; they travel
// as model.RejectedRecord on the reject channel.
var (
	// ErrSourceUnavailable means the trip input could not be located or
	// opened. Fatal for the run, no partial processing.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDimensionUnavailable means the rider snapshot could not be read.
	ErrDimensionUnavailable = errors.New("dimension unavailable")

	// ErrWriteFailure means a partition or aggregate write failed after
	// retries. The affected unit is left untouched (temp-then-rename).
	ErrWriteFailure = errors.New("write failure")
)
