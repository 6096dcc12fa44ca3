package signal

import "errors"

// Domain errors for the signal package. Check with errors.Is().
var (
	// ErrSignalNotFound is returned when a label has no stored signal.
	ErrSignalNotFound = errors.New("signal: not found")

	// ErrInvalidLabel is returned when a label is not a valid slug.
	ErrInvalidLabel = errors.New("signal: invalid label")

	// ErrEmptySignal is returned when saving zero-length signal data.
	ErrEmptySignal = errors.New("signal: empty data")
)
