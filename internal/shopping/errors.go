package shopping

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when a scoped operation runs without a
	// session.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when a list or item does not exist or belongs
	// to someone else. The two cases are indistinguishable to the caller.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransportError wraps a storage or network failure. Status is the HTTP
// status when the failure came from a remote server, otherwise 0.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
