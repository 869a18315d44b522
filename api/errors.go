// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-dgram.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	// ErrWouldBlock is the expected "no progress possible right now" result
	// of a non-blocking operation. It is never a failure.
	ErrWouldBlock = errors.New("operation would block")

	ErrRegistration = errors.New("registration error")
	ErrPoll         = errors.New("poll failure")
	ErrIO           = errors.New("fatal i/o error")

	ErrAlreadyRegistered = errors.New("source already registered")
	ErrNotRegistered     = errors.New("source not registered")
	ErrPollerClosed      = errors.New("poller closed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeRegistration
	ErrCodePoll
	ErrCodeIO
	ErrCodeInvalidArgument
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeRegistration:
		return "registration"
	case ErrCodePoll:
		return "poll"
	case ErrCodeIO:
		return "io"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	default:
		return "internal"
	}
}

// sentinel maps a code to the class error that errors.Is should match.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeRegistration:
		return ErrRegistration
	case ErrCodePoll:
		return ErrPoll
	case ErrCodeIO:
		return ErrIO
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	default:
		return nil
	}
}

// Error represents a structured error with code, failing operation, cause
// and context.
type Error struct {
	Code    ErrorCode
	Op      string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the class sentinel for the error's code, so that
// errors.Is(err, ErrRegistration) works regardless of the cause.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && target == s
}

// NewError creates a new structured error.
func NewError(code ErrorCode, op string, cause error) *Error {
	return &Error{
		Code: code,
		Op:   op,
		Err:  cause,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// RegistrationError wraps cause as a registration misuse error.
func RegistrationError(op string, cause error) *Error {
	return NewError(ErrCodeRegistration, op, cause)
}

// PollError wraps cause as an unrecoverable wait failure.
func PollError(op string, cause error) *Error {
	return NewError(ErrCodePoll, op, cause)
}

// IOError wraps cause as a fatal receive/transmit failure.
func IOError(op string, cause error) *Error {
	return NewError(ErrCodeIO, op, cause)
}

// CodeOf extracts the ErrorCode of err, or ErrCodeOK for nil and
// ErrCodeInternal for errors that are not *Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
