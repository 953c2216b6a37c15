package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Kind is the closed set of failure categories surfaced by the rental core.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindConflict            Kind = "conflict"
	KindAuth                Kind = "auth"
	KindValidation          Kind = "validation"
	KindInternal            Kind = "internal"
)

// Error is a categorized failure. Details carries structured context for callers,
// e.g. the shortfall of an insufficient allocation.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a categorized error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap categorizes an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return Errorf(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return Errorf(KindInvalidState, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Errorf(KindConflict, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return Errorf(KindResourceUnavailable, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return Errorf(KindValidation, format, args...)
}

// WithDetail returns e with an extra detail field set.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf reports the category of err. Uncategorized errors are internal,
// except optimistic lock and duplicate ledger failures which are conflicts.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrDuplicateTransaction) {
		return KindConflict
	}
	return KindInternal
}

// IsKind reports whether err is categorized as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
