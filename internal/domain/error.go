package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownFlow     = errors.New("unknown flow")
	ErrJournalSchema   = errors.New("operation journal schema missing")

	// ErrInvariant marks a state machine construction bug: a terminal action ran
	// without its required fields, or a session points at a state no flow owns.
	ErrInvariant = errors.New("flow invariant violated")
)

// ValidationError is bad user input. The session stays where it is and the
// user is asked again.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// APIError is returned once every attempt against a billing endpoint failed.
type APIError struct {
	Endpoint string
	Attempts int
	Cause    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

// BusinessError is a well-formed billing response whose code is not the success sentinel.
type BusinessError struct {
	Endpoint string
	Code     string
	Raw      string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("billing %s returned code %q: %s", e.Endpoint, e.Code, e.Raw)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
