package stats

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when an observation cannot be
	// accumulated, e.g. NaN or an infinity.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPreconditionNotMet is returned when a statistic is queried before
	// enough data exists to define it.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrOutOfRange is returned when a lag outside [1, maxLag] is queried.
	ErrOutOfRange = errors.New("out of range")
)

// StatsError represents a failed accumulator operation
type StatsError struct {
	Operation string
	Detail    string
	Err       error
}

// Error implements the error interface
func (e *StatsError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("stats: %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("stats: %s: %s: %v", e.Operation, e.Detail, e.Err)
}

// Unwrap returns the underlying error kind
func (e *StatsError) Unwrap() error {
	return e.Err
}

func newStatsError(operation string, kind error, format string, args ...interface{}) *StatsError {
	return &StatsError{
		Operation: operation,
		Detail:    fmt.Sprintf(format, args...),
		Err:       kind,
	}
}
