package alarm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures at the boundary of each operation.
type ErrorKind string

const (
	// SchedulingError means the timer service refused a registration.
	SchedulingError ErrorKind = "scheduling"
	// CancellationError means the timer service refused a cancellation.
	CancellationError ErrorKind = "cancellation"
	// DeliveryError means the notification sink failed to show a notification.
	DeliveryError ErrorKind = "delivery"
)

// Error wraps a failure with its kind and the alarm identifier it concerns.
type Error struct {
	// Kind tells which boundary the failure happened at.
	Kind ErrorKind
	// Identifier is the alarm slot involved.
	Identifier int
	// Err is the underlying cause.
	Err error
}

// NewError wraps err as a failure of the given kind.
func NewError(kind ErrorKind, identifier int, err error) *Error {
	return &Error{
		Kind:       kind,
		Identifier: identifier,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error for alarm %d: %v", e.Kind, e.Identifier, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var alarmErr *Error
	if errors.As(err, &alarmErr) {
		return alarmErr.Kind, true
	}

	return "", false
}
