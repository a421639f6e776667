package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrCounterpartNotFound means the mirrored row of a booking could
	// not be derived; the pair is inconsistent or the input is wrong.
	ErrCounterpartNotFound = errors.New("counterpart reservation not found")

	ErrInvalidListState = errors.New("unknown reservation list state")
)
