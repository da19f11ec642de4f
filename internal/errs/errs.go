// Package errs defines the error taxonomy shared across the connectivity
// runtime. Every subsystem wraps failures in one of these types so callers
// can branch on Kind without string-matching messages.
package errs

import "fmt"

// Kind classifies an error for dispatch purposes (retry, fatal, re-seed, ...).
type Kind string

const (
	KindConfig      Kind = "config"
	KindNetwork     Kind = "network"
	KindProtocol    Kind = "protocol"
	KindRateLimited Kind = "rate_limited"
	KindState       Kind = "state"
	KindStorage     Kind = "storage"
	KindClient      Kind = "client"
)

// StateKind further classifies KindState errors.
type StateKind string

const (
	StateGap           StateKind = "gap"
	StateStaleOrder    StateKind = "stale_order"
	StateAccountAbsent StateKind = "account_absent"
)

// Error is the concrete error type returned by this module's packages;
// internal/config is the exception and returns plain fmt errors.
type Error struct {
	Kind      Kind
	State     StateKind // set only when Kind == KindState
	Op        string    // short operation name, e.g. "book.ApplyDiff"
	Message   string
	Err       error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func Config(op, format string, args ...any) *Error  { return newf(KindConfig, op, format, args...) }
func Network(op string, err error, format string, args ...any) *Error {
	return wrapf(KindNetwork, op, err, format, args...)
}
func Protocol(op, format string, args ...any) *Error { return newf(KindProtocol, op, format, args...) }
func RateLimited(op, format string, args ...any) *Error {
	return newf(KindRateLimited, op, format, args...)
}
func State(op string, state StateKind, format string, args ...any) *Error {
	e := newf(KindState, op, format, args...)
	e.State = state
	return e
}
func Storage(op string, err error, format string, args ...any) *Error {
	return wrapf(KindStorage, op, err, format, args...)
}
func Client(op, format string, args ...any) *Error { return newf(KindClient, op, format, args...) }

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}

// IsState reports whether err is a KindState error with the given StateKind.
func IsState(err error, state StateKind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == KindState && e.State == state
}
