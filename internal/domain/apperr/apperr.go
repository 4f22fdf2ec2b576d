// Package apperr defines the error taxonomy shared by the storefront domains.
// Transport layers map a Kind to a response status; the message of a kinded
// error is safe to show to clients.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies an error for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Kinded is implemented by errors that carry a client-safe classification.
type Kinded interface {
	error
	Kind() Kind
}

// Error is the generic kinded error.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

// Kind reports the error classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.cause }

// Validation reports malformed or missing input.
func Validation(msg string) error { return &Error{kind: KindValidation, message: msg} }

// NotFound reports a reference that does not resolve.
func NotFound(msg string) error { return &Error{kind: KindNotFound, message: msg} }

// Unauthorized reports a missing or invalid caller identity.
func Unauthorized(msg string) error { return &Error{kind: KindUnauthorized, message: msg} }

// Forbidden reports a caller acting on something it does not own.
func Forbidden(msg string) error { return &Error{kind: KindForbidden, message: msg} }

// Conflict reports an operation that is invalid in the current state.
func Conflict(msg string) error { return &Error{kind: KindConflict, message: msg} }

// Upstream reports a failing external provider. The cause is kept for logs
// and never shown to clients.
func Upstream(msg string, cause error) error {
	return &Error{kind: KindUpstream, message: msg, cause: cause}
}

// Classify finds the outermost kinded error in the chain. Errors without a
// classification are KindInternal with an empty message.
func Classify(err error) (Kind, string) {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), k.Error()
	}
	return KindInternal, ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, _ := Classify(err)
	return err != nil && k == kind
}
