package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure raised while serving a request or socket event.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindInvalidTarget
	KindValidation
	KindNotFound
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidTarget:
		return "invalid_target"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInvariantViolation:
		return "invariant_violation"
	default:
		return "internal_error"
	}
}

// Status maps a kind onto the HTTP status code reported to clients, both over
// REST and inside socket error events.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidTarget, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvariantViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error       { return New(KindUnauthorized, message) }
func InvalidTarget(message string) *Error      { return New(KindInvalidTarget, message) }
func Validation(message string) *Error         { return New(KindValidation, message) }
func NotFound(message string) *Error           { return New(KindNotFound, message) }
func InvariantViolation(message string) *Error { return New(KindInvariantViolation, message) }

// Internal wraps a store or transport failure. The cause is kept for logging
// and never shown to the client.
func Internal(err error) *Error {
	return Wrap(KindInternal, err, "internal server error")
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
