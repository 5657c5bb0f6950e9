package services

import "errors"

var (
	// ErrNotFound means no series or summary row exists for a pair. It is
	// expected for many combinations and is not a data integrity problem.
	ErrNotFound = errors.New("forecast data not found")

	// ErrMalformedData means the located data could not be parsed into a
	// valid series or summary table.
	ErrMalformedData = errors.New("malformed forecast data")

	ErrInvalidWindow = errors.New("invalid date window")

	// ErrEmptyTable is returned when a ranking is requested over no rows.
	ErrEmptyTable = errors.New("accuracy summary is empty")

	// ErrDivisionByZero is returned when the actual total of a window is 0
	// and a percentage change cannot be derived.
	ErrDivisionByZero = errors.New("actual total is zero")

	ErrIdentifierMismatch = errors.New("summary row and series identifiers disagree")
)
