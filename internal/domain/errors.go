package domain

import (
	"errors"
	"fmt"
)

// Exit codes for text adapters (CLI). The core never calls os.Exit; adapters
// translate errors via ExitCode.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitCancelled  = 4
)

// ErrCancelled is returned when a computation is cancelled via its context.
// No cache entry is created for a cancelled run.
var ErrCancelled = errors.New("computation cancelled")

// InvalidFieldError indicates a required field is missing or malformed
// during entity construction.
type InvalidFieldError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q on entity %q: %s", e.Field, e.Entity, e.Reason)
}

// OutOfRangeError indicates a field value violates a range constraint.
type OutOfRangeError struct {
	Entity string
	Field  string
	Value  float64
	Reason string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("field %q on entity %q out of range (%v): %s", e.Field, e.Entity, e.Value, e.Reason)
}

// BadDateError indicates a date string failed ISO-8601 (YYYY-MM-DD) parsing.
type BadDateError struct {
	Entity string
	Field  string
	Value  string
}

func (e *BadDateError) Error() string {
	return fmt.Sprintf("field %q on entity %q is not a valid YYYY-MM-DD date: %q", e.Field, e.Entity, e.Value)
}

// BadRangeError indicates an inverted date range was requested.
type BadRangeError struct {
	Start string
	End   string
}

func (e *BadRangeError) Error() string {
	return fmt.Sprintf("bad date range: start %s is after end %s", e.Start, e.End)
}

// NotFoundError indicates a missing entity, scenario, calculator or file.
type NotFoundError struct {
	Kind string // "entity", "scenario", "calculator", "file"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ValidationFailedError carries a validation report with at least one
// error-severity issue. The report itself lives with the validator that
// produced it; this error only signals the failure.
type ValidationFailedError struct {
	Issues int
	Detail string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s): %s", e.Issues, e.Detail)
}

// BadStateError indicates an invariant violation during computation, such as
// a Cholesky decomposition on a non-positive-definite matrix.
type BadStateError struct {
	Detail string
}

func (e *BadStateError) Error() string {
	return "bad state: " + e.Detail
}

// InternalError wraps an unexpected failure.
type InternalError struct {
	Detail string
	Err    error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Detail, e.Err)
	}
	return "internal error: " + e.Detail
}

func (e *InternalError) Unwrap() error { return e.Err }

// ExitCode maps an error to the adapter exit code contract:
// 0 success, 2 validation failure, 3 not found, 4 cancelled, 1 internal.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, ErrCancelled) {
		return ExitCancelled
	}

	var (
		invalidField *InvalidFieldError
		outOfRange   *OutOfRangeError
		badDate      *BadDateError
		badRange     *BadRangeError
		notFound     *NotFoundError
		validation   *ValidationFailedError
	)
	switch {
	case errors.As(err, &invalidField),
		errors.As(err, &outOfRange),
		errors.As(err, &badDate),
		errors.As(err, &badRange),
		errors.As(err, &validation):
		return ExitValidation
	case errors.As(err, &notFound):
		return ExitNotFound
	}

	return ExitInternal
}
