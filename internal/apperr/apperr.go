// Package apperr is the error taxonomy shared by the services and the
// command dispatcher. Every error that reaches a chat reply carries a Kind
// and a message that is safe to show to the actor.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInternal           Kind = "INTERNAL"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindTransportFailure   Kind = "TRANSPORT_FAILURE"
	KindConfiguration      Kind = "CONFIGURATION_ERROR"
	KindStorageFailure     Kind = "STORAGE_FAILURE"
	KindFatal              Kind = "FATAL"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

func PermissionDenied(message string) *Error   { return New(KindPermissionDenied, message) }
func InvalidArgument(message string) *Error    { return New(KindInvalidArgument, message) }
func PreconditionFailed(message string) *Error { return New(KindPreconditionFailed, message) }

// Transport wraps a failed send/query against the chat network.
func Transport(err error, message string) *Error {
	return Wrap(err, KindTransportFailure, message)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage is the text shown in chat for err. Internal errors never leak
// their cause.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal || e.Kind == KindStorageFailure || e.Kind == KindFatal {
		return "Something went wrong on my side, try again later."
	}
	return e.Message
}
