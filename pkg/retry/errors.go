package retry

import (
	"errors"
	"fmt"
)

// Error attaches a classification Kind to an underlying error so policies can
// decide whether to retry it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// RetryKind implements the classification probe used by KindOf.
func (e *Error) RetryKind() Kind { return e.Kind }

// Classified wraps err with the given kind. Returns nil for a nil err.
func Classified(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the classification of an error. Errors that do not carry a
// kind anywhere in their wrap chain are treated as transient.
func KindOf(err error) Kind {
	var k interface{ RetryKind() Kind }
	if errors.As(err, &k) {
		return k.RetryKind()
	}
	return KindTransient
}

// ExhaustedError is the terminal error returned when every attempt failed.
// It wraps the last underlying error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
