package settlement

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service that is not one of these is an internal failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")
)

// Conflict messages.
const (
	MsgVoidedInvoice      = "voided invoice"
	MsgExceedsUnapplied   = "exceeds unapplied balance"
	MsgExceedsOutstanding = "exceeds outstanding balance"
	MsgHasApplications    = "invoice has applications"
)

// Error carries a kind plus a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func invalid(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing message of err, or "" if err is not a *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}

	return ""
}
