// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for socev.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrCapacityExceeded  = fmt.Errorf("capacity exceeded: %w", ErrResourceExhausted)
	ErrIoFailure         = errors.New("i/o failure")
	ErrInterrupted       = errors.New("wait interrupted")
	ErrWouldBlock        = errors.New("operation would block")
	ErrClosed            = errors.New("context is closed")
	ErrStaleEndpoint     = errors.New("endpoint is no longer live")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrNotFound          = errors.New("resource not found")
	ErrNotSupported      = errors.New("operation not supported")
	ErrInCallback        = errors.New("operation not allowed from within a callback")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeConfigInvalid
	ErrCodeResourceExhausted
	ErrCodeCapacityExceeded
	ErrCodeIoFailure
	ErrCodeClosed
	ErrCodeNotFound
	ErrCodeNotSupported
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConfigInvalid:
		return "config_invalid"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeCapacityExceeded:
		return "capacity_exceeded"
	case ErrCodeIoFailure:
		return "io_failure"
	case ErrCodeClosed:
		return "closed"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeNotSupported:
		return "not_supported"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// sentinel maps a code to the sentinel error it matches under errors.Is.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeConfigInvalid:
		return ErrConfigInvalid
	case ErrCodeResourceExhausted:
		return ErrResourceExhausted
	case ErrCodeCapacityExceeded:
		return ErrCapacityExceeded
	case ErrCodeIoFailure:
		return ErrIoFailure
	case ErrCodeClosed:
		return ErrClosed
	case ErrCodeNotFound:
		return ErrNotFound
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel for this error's code.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && (s == target || errors.Is(s, target))
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
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

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// ConfigError is shorthand for an ErrCodeConfigInvalid error.
func ConfigError(format string, args ...any) *Error {
	return NewError(ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain, or ErrCodeOK.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeOK
}
