package kstate

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured kstate error with operation context and
// errno mapping: op/code/errno/msg/inner, with errors.Is/Unwrap support.
type Error struct {
	Op    string // operation that failed, e.g. "subscribe", "commit"
	Name  string // canonical state/transaction name, if applicable
	Code  ErrorCode
	Errno syscall.Errno
	Msg   string
	Inner error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		if e.Name != "" {
			return fmt.Sprintf("kstate: %s: %s (name=%s)", e.Op, msg, e.Name)
		}
		return fmt.Sprintf("kstate: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("kstate: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support: an *Error matches a sentinel
// errorSentinel when their Code fields agree, and matches another
// *Error the same way.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if s, ok := target.(errorSentinel); ok {
		return e.Code == ErrorCode(s)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category, one of invalid-argument,
// not-permitted, not-found, out-of-memory, or conflict, plus "adapter"
// for raw OS errno passthrough.
type ErrorCode string

const (
	codeInvalidArgument ErrorCode = "invalid argument"
	codeNotPermitted    ErrorCode = "operation not permitted"
	codeNotFound        ErrorCode = "not found"
	codeOutOfMemory     ErrorCode = "out of memory"
	codeAdapter         ErrorCode = "shared-memory adapter error"

	// codeConflict is Commit's optimistic-concurrency-control failure:
	// the shared region changed since the transaction's snapshot.
	// Reported with the same errno (-EPERM) as codeNotPermitted, but
	// kept as its own category so callers can tell "retry" from "give
	// up" via errors.Is against ErrConflict.
	codeConflict ErrorCode = "optimistic conflict"
)

// errorSentinel lets the package-level Err* values participate in
// errors.Is comparisons against *Error without themselves carrying
// operation context.
type errorSentinel ErrorCode

func (s errorSentinel) Error() string { return string(s) }

// Sentinel errors for errors.Is comparisons.
var (
	ErrInvalidArgument = errorSentinel(codeInvalidArgument)
	ErrNotPermitted    = errorSentinel(codeNotPermitted)
	ErrNotFound        = errorSentinel(codeNotFound)
	ErrOutOfMemory     = errorSentinel(codeOutOfMemory)
	ErrConflict        = errorSentinel(codeConflict)
)

func newError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

func newNamedError(op, name string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Name: name, Code: code, Msg: msg}
}

// wrapErrno maps a raw syscall errno surfaced by the shared-mapping
// adapter into a structured *Error.
func wrapErrno(op string, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  mapErrnoToCode(errno),
		Errno: errno,
		Msg:   errno.Error(),
	}
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT:
		return codeNotFound
	case syscall.EINVAL:
		return codeInvalidArgument
	case syscall.EPERM, syscall.EACCES:
		return codeNotPermitted
	case syscall.ENOMEM:
		return codeOutOfMemory
	default:
		return codeAdapter
	}
}

// Errno recovers a "-errno" style integer return code for a kstate
// error, for callers that want a language-neutral status value instead
// of comparing against the Err* sentinels directly. Returns 0 if err is
// nil.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return -int(syscall.EINVAL)
	}
	if e.Errno != 0 {
		return -int(e.Errno)
	}
	switch e.Code {
	case codeInvalidArgument:
		return -int(syscall.EINVAL)
	case codeNotFound:
		return -int(syscall.ENOENT)
	case codeNotPermitted:
		return -int(syscall.EPERM)
	case codeOutOfMemory:
		return -int(syscall.ENOMEM)
	case codeConflict:
		return -int(syscall.EPERM)
	default:
		return -int(syscall.EIO)
	}
}

// IsConflict reports whether err is a Commit failure caused by the
// optimistic-concurrency-control check rather than a permission or
// argument error — the condition a caller should retry on.
func IsConflict(err error) bool {
	return IsCode(err, codeConflict)
}

// adapterError turns an error returned by the shared-mapping adapter
// into a structured, named *Error: an *Error keeps its code (its Name is
// filled in only if empty), an Err* sentinel keeps its code, a syscall
// errno (possibly wrapped, e.g. by Map's fmt.Errorf) becomes a wrapErrno
// result, and anything else becomes a generic codeAdapter error. op is
// attached in every case.
func adapterError(op, name string, err error) *Error {
	var kerr *Error
	if errors.As(err, &kerr) {
		e := *kerr
		e.Op = op
		if e.Name == "" {
			e.Name = name
		}
		return &e
	}
	if sentinel, ok := err.(errorSentinel); ok {
		e := newError(op, ErrorCode(sentinel), sentinel.Error())
		e.Name = name
		return e
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e := wrapErrno(op, errno)
		e.Name = name
		return e
	}
	e := newError(op, codeAdapter, err.Error())
	e.Name = name
	return e
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
