// Package apperr is the error taxonomy shared by the capture, identity,
// catalog and recommendation layers. Every error surfaced to a view carries a
// Kind so the caller can tell a retryable "no match" from a hard failure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindNotReady          Kind = "NOT_READY"
	KindValidation        Kind = "VALIDATION"
	KindAmbiguousIdentity Kind = "AMBIGUOUS_IDENTITY"
	KindTransport         Kind = "TRANSPORT"
	KindEmptyResult       Kind = "EMPTY_RESULT"
	KindRequestInFlight   Kind = "REQUEST_IN_FLIGHT"
	KindStale             Kind = "STALE"
)

// Sentinels match any error of the same kind through errors.Is.
var (
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrNotReady          = &Error{Kind: KindNotReady}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAmbiguousIdentity = &Error{Kind: KindAmbiguousIdentity}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrEmptyResult       = &Error{Kind: KindEmptyResult}
	ErrRequestInFlight   = &Error{Kind: KindRequestInFlight}
	ErrStale             = &Error{Kind: KindStale}
)

const transportFallback = "service unavailable, please try again"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Transport builds a transport error, falling back to a generic message when
// the remote side did not provide one.
func Transport(serverMessage string, err error) *Error {
	if serverMessage == "" {
		serverMessage = transportFallback
	}
	return &Error{Kind: KindTransport, Message: serverMessage, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on message too when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
