package server

import (
	"errors"
	"fmt"
)

// Kind classifies every failure that can end a connection.
type Kind int

const (
	KindIO       Kind = iota // transport failure
	KindUTF8                 // bytes that had to be text were not valid UTF-8
	KindTimeout              // no data within the read deadline
	KindEOF                  // peer closed the stream
	KindBuildReq             // malformed request line or header
	KindOption               // missing cache entry or expected line
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindUTF8:
		return "utf8"
	case KindTimeout:
		return "timeout"
	case KindEOF:
		return "eof"
	case KindBuildReq:
		return "bad request"
	case KindOption:
		return "not found"
	default:
		return "unknown"
	}
}

// routine reports whether failures of this kind are part of normal
// connection turnover rather than something worth reporting.
func (k Kind) routine() bool {
	return k == KindEOF || k == KindTimeout
}

// Error is the single tagged error value surfaced to the connection pipeline.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("glacier: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("glacier: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrTimeout) works
// for any timeout regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Kind sentinels, for use with errors.Is.
var (
	ErrIO        = &Error{Kind: KindIO}
	ErrUTF8      = &Error{Kind: KindUTF8}
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrEOF       = &Error{Kind: KindEOF}
	ErrMalformed = &Error{Kind: KindBuildReq}
	ErrNotFound  = &Error{Kind: KindOption}
)

var (
	ErrHeadersTooLarge = errors.New("headers too large")
	ErrBodyTooLarge    = errors.New("body too large")
	ErrLengthMismatch  = errors.New("replacement length differs from original field")
	ErrStaleRequest    = errors.New("request used after its buffer was reset")
	ErrListenerClosed  = errors.New("listener closed")
	ErrRateLimited     = errors.New("too many requests from this address")
)

// KindOf returns the kind carried by err, or KindIO for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}
