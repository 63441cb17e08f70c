// Package errs classifies suite failures into the small taxonomy the runner
// reports on: element waits that time out, assertion mismatches, session
// setup failures and credential-file problems.
package errs

import (
	"context"
	"errors"
)

// Code is a failure class.
type Code string

const (
	Timeout         Code = "timeout"
	Assertion       Code = "assertion"
	Setup           Code = "setup"
	DataLoad        Code = "data_load"
	InvalidArgument Code = "invalid_argument"
	Internal        Code = "internal"
)

// Error is a coded suite error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
// An uncoded context.DeadlineExceeded is reported as a timeout.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// MessageOf returns the coded message, without the wrapped cause.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// IsTimeout reports whether err is a wait timeout.
func IsTimeout(err error) bool {
	return err != nil && CodeOf(err) == Timeout
}

// ExitCode maps a run error to a process exit status:
// 0 for success, 1 for test failures, 2 for anything that prevented the
// scenario from running.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case Timeout, Assertion:
		return 1
	default:
		return 2
	}
}
